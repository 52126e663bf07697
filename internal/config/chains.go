package config

// DefaultChains is the oracle table used when none is configured: Chainlink
// USD feeds on Ethereum, BSC, Polygon and Arbitrum. Prices seed the static provider.
func DefaultChains() []ChainConfig {
	return []ChainConfig{
		{
			ID:   1,
			Name: "ethereum",
			Feeds: []FeedConfig{
				{Pair: "ETH/USD", Address: "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419", Price: 2500},
				{Pair: "BTC/USD", Address: "0xF4030086522a5bEEa4988F8cA5B36dbC97BeE88c", Price: 45000},
				{Pair: "USDC/USD", Address: "0x8fFfFfd4AfB6115b954Bd326cbe7B4BA576818f6", Price: 1},
			},
		},
		{
			ID:   56,
			Name: "bsc",
			Feeds: []FeedConfig{
				{Pair: "BNB/USD", Address: "0x0567F2323251f0Aab15c8dFb1967E4e8A7D5aaC0", Price: 300},
			},
		},
		{
			ID:   137,
			Name: "polygon",
			Feeds: []FeedConfig{
				{Pair: "ETH/USD", Address: "0xF9680D99D6C9589e2a93a78A04A279e509205945", Price: 2500},
				{Pair: "MATIC/USD", Address: "0xAB594600376Ec9fD91F8e885dADF0CE036862dE0", Price: 0.8},
			},
		},
		{
			ID:   42161,
			Name: "arbitrum",
			Feeds: []FeedConfig{
				{Pair: "ETH/USD", Address: "0x639Fe6ab55C921f74e7fac1ee960C0B6293ba612", Price: 2500},
			},
		},
	}
}
