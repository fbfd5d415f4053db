package remote

import (
	"errors"
	"fmt"
	"strings"
)

// Consistency says how much a sync trusts objects already present at the
// destination. Levels are ordered from weakest to strongest.
type Consistency int

const (
	// Skip does not sync at all.
	Skip Consistency = iota
	// AssumeTotalConnectivity treats a present object as proof that
	// everything it references is present too.
	AssumeTotalConnectivity
	// AssumeCommitTreeConnectivity trusts a present commit's tree and a
	// present tree's contents, but still walks a present commit's parents.
	AssumeCommitTreeConnectivity
	// AssumeObjectIntegrity checks every object individually. Present
	// objects are not rewritten but their dependencies are still walked.
	AssumeObjectIntegrity
	// Pessimistic re-copies every object.
	Pessimistic
)

var consistencyNames = []string{
	Skip:                         "skip",
	AssumeTotalConnectivity:      "total-connectivity",
	AssumeCommitTreeConnectivity: "commit-tree-connectivity",
	AssumeObjectIntegrity:        "object-integrity",
	Pessimistic:                  "pessimistic",
}

func (c Consistency) String() string {
	if c < 0 || int(c) >= len(consistencyNames) {
		return fmt.Sprintf("consistency(%d)", int(c))
	}
	return consistencyNames[c]
}

// Strategy chooses a consistency level for the commit being synced and for
// its ancestors.
type Strategy struct {
	Top       Consistency
	Ancestors Consistency
	// AllowShallow lets a sync stop at ancestors whose data is missing from
	// the source instead of failing.
	AllowShallow bool
}

var ErrInvalidStrategy = errors.New("invalid sync strategy")

// NewStrategy validates and returns a Strategy. The top commit must be
// synced at least as strictly as its ancestors, and skipping ancestors
// requires allowShallow.
func NewStrategy(top, ancestors Consistency, allowShallow bool) (Strategy, error) {
	s := Strategy{Top: top, Ancestors: ancestors, AllowShallow: allowShallow}
	if err := s.Validate(); err != nil {
		return Strategy{}, err
	}
	return s, nil
}

// Validate checks the invariants NewStrategy enforces.
func (s Strategy) Validate() error {
	for _, c := range []Consistency{s.Top, s.Ancestors} {
		if c < Skip || c > Pessimistic {
			return fmt.Errorf("%w: unknown consistency %s", ErrInvalidStrategy, c)
		}
	}
	if s.Top == Skip {
		return fmt.Errorf("%w: top commit cannot be skipped", ErrInvalidStrategy)
	}
	if s.Top < s.Ancestors {
		return fmt.Errorf("%w: top %s is weaker than ancestors %s", ErrInvalidStrategy, s.Top, s.Ancestors)
	}
	if s.Ancestors == Skip && !s.AllowShallow {
		return fmt.Errorf("%w: skipping ancestors requires shallow syncs", ErrInvalidStrategy)
	}
	return nil
}

func (s Strategy) String() string {
	out := s.Top.String() + "/" + s.Ancestors.String()
	if s.AllowShallow {
		out += "/shallow"
	}
	return out
}

// Named strategies.
var (
	// StrategyFast trusts whatever the destination already has.
	StrategyFast = Strategy{Top: AssumeTotalConnectivity, Ancestors: AssumeTotalConnectivity, AllowShallow: true}
	// StrategyDeepen re-walks history behind present commits, filling in
	// ancestors a shallow sync left out.
	StrategyDeepen = Strategy{Top: AssumeCommitTreeConnectivity, Ancestors: AssumeCommitTreeConnectivity, AllowShallow: true}
	// StrategyVerify checks that every object is present.
	StrategyVerify = Strategy{Top: AssumeObjectIntegrity, Ancestors: AssumeObjectIntegrity}
	// StrategyRepair rewrites everything, replacing corrupt copies.
	StrategyRepair = Strategy{Top: Pessimistic, Ancestors: Pessimistic}
	// StrategyShallowTop copies only the top commit and its tree.
	StrategyShallowTop = Strategy{Top: AssumeObjectIntegrity, Ancestors: Skip, AllowShallow: true}
)

var namedStrategies = map[string]Strategy{
	"fast":        StrategyFast,
	"deepen":      StrategyDeepen,
	"verify":      StrategyVerify,
	"repair":      StrategyRepair,
	"shallow-top": StrategyShallowTop,
}

// ParseStrategy returns the named strategy.
func ParseStrategy(name string) (Strategy, error) {
	s, ok := namedStrategies[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Strategy{}, fmt.Errorf("%w: unknown strategy %q (want fast, deepen, verify, repair or shallow-top)", ErrInvalidStrategy, name)
	}
	return s, nil
}
