package universe

import "github.com/rs/zerolog"

// seedUniverse pairs a universe definition with its member list for the
// default install.
type seedUniverse struct {
	record  Record
	members []string
}

// defaultSeed is the starter relationship index installed on first boot.
// Production deployments replace it via universe_seed jobs; the defaults
// exist so a fresh install can submit jobs without any prior setup.
var defaultSeed = []seedUniverse{
	{
		record: Record{Key: "dow30", Type: TypeIndex, Description: "Dow Jones Industrial Average components"},
		members: []string{
			"AAPL", "AMGN", "AMZN", "AXP", "BA", "CAT", "CRM", "CSCO", "CVX",
			"DIS", "GS", "HD", "HON", "IBM", "JNJ", "JPM", "KO", "MCD", "MMM",
			"MRK", "MSFT", "NKE", "NVDA", "PG", "SHW", "TRV", "UNH", "V", "VZ",
			"WMT",
		},
	},
	{
		record: Record{Key: "etfs", Type: TypeFund, Description: "Liquid exchange-traded funds"},
		members: []string{
			"DIA", "EEM", "GLD", "IWM", "QQQ", "SLV", "SPY", "TLT", "VTI",
			"XLE", "XLF", "XLK",
		},
	},
	{
		record: Record{Key: "market_leaders", Type: TypeWatchlist, Description: "Large-cap leaders tracked by default"},
		members: []string{
			"AAPL", "AMZN", "AVGO", "BRK.B", "GOOGL", "JPM", "LLY", "META",
			"MSFT", "NVDA", "TSLA", "V",
		},
	},
	{
		record: Record{Key: "semis", Type: TypeSector, Description: "Semiconductor names"},
		members: []string{
			"AMD", "ASML", "AVGO", "INTC", "MU", "NVDA", "QCOM", "TSM", "TXN",
		},
	},
}

// SeedDefaults installs the default universes when the index is empty.
// Called once at startup; a populated index is left untouched.
func SeedDefaults(repo *Repository, log zerolog.Logger) error {
	count, err := repo.Count()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, seed := range defaultSeed {
		if err := repo.UpsertUniverse(seed.record); err != nil {
			return err
		}
		if err := repo.ReplaceMembers(seed.record.Key, seed.members); err != nil {
			return err
		}
	}

	log.Info().Int("universes", len(defaultSeed)).Msg("Seeded default universe index")
	return nil
}
