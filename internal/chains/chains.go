// Package chains lists the networks Morpho vaults are queried on.
package chains

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const MorphoGraphQLEndpoint = "https://api.morpho.org/graphql"

type Chain struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	GraphQLEndpoint string `json:"graphqlEndpoint"`
	NativeSymbol    string `json:"nativeSymbol"`
	RPCURL          string `json:"rpcUrl"`
	ExplorerName    string `json:"explorerName"`
	ExplorerURL     string `json:"explorerUrl"`
}

var Morpho = []Chain{
	{ID: 1, Name: "Ethereum", GraphQLEndpoint: MorphoGraphQLEndpoint, NativeSymbol: "ETH", RPCURL: "https://eth.llamarpc.com", ExplorerName: "Etherscan", ExplorerURL: "https://etherscan.io"},
	{ID: 137, Name: "Polygon", GraphQLEndpoint: MorphoGraphQLEndpoint, NativeSymbol: "MATIC", RPCURL: "https://polygon-rpc.com", ExplorerName: "PolygonScan", ExplorerURL: "https://polygonscan.com"},
	{ID: 42161, Name: "Arbitrum", GraphQLEndpoint: MorphoGraphQLEndpoint, NativeSymbol: "ETH", RPCURL: "https://arb1.arbitrum.io/rpc", ExplorerName: "Arbiscan", ExplorerURL: "https://arbiscan.io"},
	{ID: 8453, Name: "Base", GraphQLEndpoint: MorphoGraphQLEndpoint, NativeSymbol: "ETH", RPCURL: "https://mainnet.base.org", ExplorerName: "BaseScan", ExplorerURL: "https://basescan.org"},
	{ID: 1301, Name: "Unichain", GraphQLEndpoint: MorphoGraphQLEndpoint, NativeSymbol: "ETH", RPCURL: "https://sepolia.unichain.org", ExplorerName: "Uniscan", ExplorerURL: "https://sepolia.uniscan.xyz"},
	{ID: 1002, Name: "Katana", GraphQLEndpoint: MorphoGraphQLEndpoint, NativeSymbol: "ETH", RPCURL: "https://katana-rpc.kakarot.org", ExplorerName: "Katana Explorer", ExplorerURL: "https://katana-explorer.kakarot.org"},
}

// DefaultYieldChains are scanned when a caller does not name chains.
var DefaultYieldChains = []int{1, 137, 42161, 8453}

// DefaultSubscriptionChains is stored for push subscribers that send none.
var DefaultSubscriptionChains = []int{1}

func ByID(id int) (Chain, bool) {
	for _, c := range Morpho {
		if c.ID == id {
			return c, true
		}
	}
	return Chain{}, false
}

func IsSupported(id int) bool {
	_, ok := ByID(id)
	return ok
}

func Name(id int) string {
	if c, ok := ByID(id); ok {
		return c.Name
	}
	return "Unknown"
}

// ParseIDs parses a comma separated list such as "1,8453". Empty input
// yields nil.
func ParseIDs(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid chain id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// FilterSupported drops unknown chain ids, keeping order and removing
// duplicates.
func FilterSupported(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if seen[id] || !IsSupported(id) {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
