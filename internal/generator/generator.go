package generator

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"
	"github.com/priyal/paygraph/internal/ledger"
)

// UserSeed is one user to provision, with an opening balance applied at
// provisioning time.
type UserSeed struct {
	UserID         string  `json:"userId"`
	Handle         string  `json:"handle"`
	ProfileRef     string  `json:"profileRef"`
	OpeningBalance float64 `json:"openingBalance"`
}

// Dataset bundles generated users and the transfers to replay over them.
type Dataset struct {
	Users     []UserSeed                   `json:"users"`
	Transfers []ledger.TransferInstruction `json:"transfers"`
}

// Generator produces deterministic synthetic payment datasets.
type Generator struct {
	cfg Config
	rng *rand.Rand
}

// New creates a Generator seeded from the config for reproducible output.
func New(cfg Config) *Generator {
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

var handleWords = []string{
	"otter", "falcon", "maple", "harbor", "comet", "willow", "ember",
	"drift", "pixel", "lark", "cedar", "ripple", "summit", "fable",
}

var descriptions = []string{
	"rent", "lunch", "concert tickets", "utilities", "groceries",
	"road trip", "birthday gift", "book club", "repairs", "coffee",
}

// Generate builds the dataset. Every transfer draws only from its sender's
// opening balance, never from incoming transfers, so the instructions can
// be replayed in any order (including concurrently) without tripping the
// insufficient-funds check.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	if g.cfg.NumUsers < 2 {
		return Dataset{}, fmt.Errorf("need at least 2 users, got %d", g.cfg.NumUsers)
	}

	users := make([]UserSeed, 0, g.cfg.NumUsers)
	spendable := make([]float64, g.cfg.NumUsers)
	for i := 0; i < g.cfg.NumUsers; i++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}
		word := handleWords[g.rng.Intn(len(handleWords))]
		opening := g.cfg.MinOpeningBalance + g.rng.Float64()*(g.cfg.MaxOpeningBalance-g.cfg.MinOpeningBalance)
		opening = math.Round(opening*100) / 100
		users = append(users, UserSeed{
			UserID:         uuidFrom(g.rng),
			Handle:         fmt.Sprintf("%s_%04d", word, i),
			ProfileRef:     fmt.Sprintf("profile-%04d", i),
			OpeningBalance: opening,
		})
		spendable[i] = opening
	}

	transfers := make([]ledger.TransferInstruction, 0, g.cfg.NumTransfers)
	for len(transfers) < g.cfg.NumTransfers {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}

		sender := g.rng.Intn(len(users))
		if spendable[sender] < 1 {
			if !anySpendable(spendable) {
				break
			}
			continue
		}

		recipient := g.rng.Intn(len(users) - 1)
		if recipient >= sender {
			recipient++
		}

		limit := math.Min(g.cfg.MaxTransferAmount, spendable[sender])
		amount := math.Round((1+g.rng.Float64()*(limit-1))*100) / 100
		spendable[sender] -= amount

		transfers = append(transfers, ledger.TransferInstruction{
			SenderID:    users[sender].UserID,
			RecipientID: users[recipient].UserID,
			Amount:      amount,
			Description: descriptions[g.rng.Intn(len(descriptions))],
		})
	}

	return Dataset{Users: users, Transfers: transfers}, nil
}

func anySpendable(spendable []float64) bool {
	for _, v := range spendable {
		if v >= 1 {
			return true
		}
	}
	return false
}

func uuidFrom(rng *rand.Rand) string {
	var raw [16]byte
	rng.Read(raw[:])
	id, err := uuid.FromBytes(raw[:])
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
