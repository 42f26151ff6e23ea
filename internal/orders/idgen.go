package orders

import (
	"context"
	"math/rand"
	"strings"
	"sync"

	pkgerrors "github.com/avoberry/avoberry-backend/pkg/errors"
)

const (
	idPrefix     = "AVB"
	idLetters    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	dniSuffixLen = 5
)

// ExistsFunc reports whether a candidate order id is already taken.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

// Generator produces order identifiers of the form
// "AVB" + 2 random uppercase letters + last 5 digits of the buyer's DNI.
// Collisions are retried up to maxAttempts before giving up.
type Generator struct {
	mu          sync.Mutex
	rnd         *rand.Rand
	maxAttempts int
}

// NewGenerator builds a generator around the given random source. The source
// is injectable so tests can force collisions deterministically.
func NewGenerator(src rand.Source, maxAttempts int) *Generator {
	if maxAttempts <= 0 {
		maxAttempts = 20
	}
	return &Generator{
		rnd:         rand.New(src),
		maxAttempts: maxAttempts,
	}
}

// Generate returns a fresh unused order id for the buyer.
func (g *Generator) Generate(ctx context.Context, dni string, exists ExistsFunc) (string, error) {
	if dni == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "dni required for order id generation")
	}

	suffix := digitSuffix(dni)
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		candidate := idPrefix + g.randomLetters(2) + suffix

		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check order id collision")
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", pkgerrors.New(pkgerrors.CodeGeneration, "exhausted order id generation attempts")
}

func (g *Generator) randomLetters(n int) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(idLetters[g.rnd.Intn(len(idLetters))])
	}
	return sb.String()
}

// digitSuffix keeps only digits from the DNI and returns its last 5,
// or everything when shorter.
func digitSuffix(dni string) string {
	var digits []byte
	for i := 0; i < len(dni); i++ {
		if dni[i] >= '0' && dni[i] <= '9' {
			digits = append(digits, dni[i])
		}
	}
	if len(digits) > dniSuffixLen {
		digits = digits[len(digits)-dniSuffixLen:]
	}
	return string(digits)
}
