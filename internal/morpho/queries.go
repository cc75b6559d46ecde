package morpho

const vaultsQuery = `
query GetVaults($chainIds: [Int!]!) {
  vaults(where: { chainId_in: $chainIds }, first: 100) {
    items {
      address
      symbol
      name
      asset {
        address
        symbol
        decimals
      }
      metadata {
        description
      }
      state {
        totalAssets
        totalSupply
        sharePrice
        apy
        netApy
        rewards {
          supplyApr
          asset {
            symbol
            name
            address
          }
        }
      }
    }
  }
}`

const userVaultsQuery = `
query GetUserVaults($chainIds: [Int!]!, $userAddresses: [String!]!) {
  vaultPositions(where: { chainId_in: $chainIds, userAddress_in: $userAddresses }, first: 100) {
    items {
      user {
        address
      }
      vault {
        address
        symbol
        name
        asset {
          address
          symbol
          decimals
        }
        state {
          sharePrice
          apy
          netApy
        }
      }
      state {
        shares
        timestamp
      }
    }
  }
}`

const userTransactionsQuery = `
query GetUserTransactions($userAddress: String!, $chainIds: [Int!]!) {
  transactions(
    where: {
      userAddress_in: [$userAddress]
      chainId_in: $chainIds
      type_in: [MetaMorphoDeposit, MetaMorphoWithdraw]
    }
    first: 100
    orderBy: Timestamp
  ) {
    items {
      id
      timestamp
      hash
      type
      data {
        ... on VaultTransactionData {
          shares
          assets
          assetsUsd
          vault {
            address
            symbol
            name
          }
        }
      }
    }
  }
}`
