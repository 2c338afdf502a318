package persona

import (
	"context"
	"fmt"

	"nexus/internal/logging"
	"nexus/internal/types"
)

// Router decides which department handles a command.
type Router struct {
	oracle types.Oracle
}

// NewRouter returns a Router backed by the given oracle.
func NewRouter(o types.Oracle) *Router {
	return &Router{oracle: o}
}

const routePrompt = `Classify the following operator command into exactly one department.
Departments:
- CENTRAL: general requests, planning, coordination
- DEV: source code, repositories, builds, CI, bug fixes
- TRADING: markets, prices, coins, trade signals
- INFRA: servers, deployments, monitoring, shell operations

Respond with the department name only.

Command: %s`

// Route returns the department for a command. Obvious commands resolve by
// keyword without an oracle round-trip; the oracle breaks ties; anything
// unparseable or failing falls back to CENTRAL.
func (r *Router) Route(ctx context.Context, command string) types.Department {
	if dept, ok := classifyByKeyword(command); ok {
		logging.Router("keyword route: %q -> %s", command, dept)
		return dept
	}

	raw, err := r.oracle.Complete(ctx, fmt.Sprintf(routePrompt, command))
	if err != nil {
		logging.Router("oracle route failed, falling back to CENTRAL: %v", err)
		return types.DeptCentral
	}

	dept, matched := types.ParseDepartment(raw)
	if !matched {
		logging.Router("unparseable route %q, falling back to CENTRAL", raw)
	} else {
		logging.Router("oracle route: %q -> %s", command, dept)
	}
	return dept
}
