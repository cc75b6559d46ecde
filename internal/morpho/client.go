// Package morpho queries the Morpho public GraphQL API for vaults, user
// positions and deposit/withdraw history.
package morpho

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/machinebox/graphql"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"yield-monitor-go/internal/metrics"
	"yield-monitor-go/internal/models"
)

const DefaultEndpoint = "https://api.morpho.org/graphql"

// Cache stores JSON-serialisable values. Get reports false on a miss.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

type Config struct {
	Endpoint   string
	HTTPClient *http.Client
	Cache      Cache
	CacheTTL   time.Duration
	Logger     *zap.Logger
}

type Client struct {
	gql      *graphql.Client
	cache    Cache
	cacheTTL time.Duration
	log      *zap.Logger
}

func NewClient(cfg Config) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	return &Client{
		gql:      graphql.NewClient(endpoint, graphql.WithHTTPClient(httpClient)),
		cache:    cfg.Cache,
		cacheTTL: ttl,
		log:      logger.Named("morpho"),
	}
}

func (c *Client) run(ctx context.Context, query string, vars map[string]any, resp any) error {
	req := graphql.NewRequest(query)
	for k, v := range vars {
		req.Var(k, v)
	}
	err := c.gql.Run(ctx, req, resp)
	metrics.RecordUpstream("morpho-graphql", err)
	return err
}

func vaultsCacheKey(chainID int) string {
	return "morpho:vaults:" + strconv.Itoa(chainID)
}

// GetVaults returns up to 100 vaults listed on chainID.
func (c *Client) GetVaults(ctx context.Context, chainID int) ([]models.Vault, error) {
	if c.cache != nil {
		var cached []models.Vault
		hit, err := c.cache.Get(ctx, vaultsCacheKey(chainID), &cached)
		if err != nil {
			c.log.Warn("vault cache read failed", zap.Int("chain_id", chainID), zap.Error(err))
		} else if hit {
			return cached, nil
		}
	}

	var resp vaultsResponse
	if err := c.run(ctx, vaultsQuery, map[string]any{"chainIds": []int{chainID}}, &resp); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch vaults for chain %d", chainID)
	}

	var vaults []models.Vault
	if resp.Vaults != nil {
		vaults = make([]models.Vault, 0, len(resp.Vaults.Items))
		for _, v := range resp.Vaults.Items {
			vaults = append(vaults, v.model(chainID))
		}
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, vaultsCacheKey(chainID), vaults, c.cacheTTL); err != nil {
			c.log.Warn("vault cache write failed", zap.Int("chain_id", chainID), zap.Error(err))
		}
	}
	return vaults, nil
}

// GetUserPositions returns the user's vault positions on chainID.
func (c *Client) GetUserPositions(ctx context.Context, address string, chainID int) ([]models.Position, error) {
	var resp positionsResponse
	vars := map[string]any{
		"chainIds":      []int{chainID},
		"userAddresses": []string{strings.ToLower(address)},
	}
	if err := c.run(ctx, userVaultsQuery, vars, &resp); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch user positions for chain %d", chainID)
	}

	if resp.VaultPositions == nil {
		return nil, nil
	}
	positions := make([]models.Position, 0, len(resp.VaultPositions.Items))
	for _, p := range resp.VaultPositions.Items {
		positions = append(positions, p.model())
	}
	return positions, nil
}

// GetUserTransactions returns the user's vault deposits and withdrawals on
// chainID, oldest first.
func (c *Client) GetUserTransactions(ctx context.Context, address string, chainID int) ([]models.Transaction, error) {
	var resp transactionsResponse
	vars := map[string]any{
		"userAddress": strings.ToLower(address),
		"chainIds":    []int{chainID},
	}
	if err := c.run(ctx, userTransactionsQuery, vars, &resp); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch user transactions for chain %d", chainID)
	}
	if resp.Transactions == nil {
		return nil, nil
	}
	txs := make([]models.Transaction, 0, len(resp.Transactions.Items))
	for _, t := range resp.Transactions.Items {
		txs = append(txs, t.model())
	}
	return txs, nil
}
