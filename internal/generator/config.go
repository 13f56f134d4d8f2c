package generator

// Config drives the synthetic dataset generator.
type Config struct {
	NumUsers          int
	NumTransfers      int
	MinOpeningBalance float64
	MaxOpeningBalance float64
	MaxTransferAmount float64
	Seed              int64
}

// DefaultConfig returns baseline settings for a small demo graph.
func DefaultConfig() Config {
	return Config{
		NumUsers:          100,
		NumTransfers:      500,
		MinOpeningBalance: 50,
		MaxOpeningBalance: 5000,
		MaxTransferAmount: 250,
		Seed:              42,
	}
}
