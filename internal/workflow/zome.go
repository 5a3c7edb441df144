package workflow

import (
	"fmt"

	"github.com/roach88/chaincore/internal/action"
	"github.com/roach88/chaincore/internal/instance"
)

// CallZome runs fn with the code of zome while the call is tracked as
// running in nucleus state. The call stays tracked until fn returns.
func CallZome(c *instance.Context, callID, zome string, fn func(code []byte) error) error {
	code, err := c.GetWasm(zome)
	if err != nil {
		return fmt.Errorf("call %s: %w", callID, err)
	}
	if _, err := c.Dispatch(action.ZomeCallStarted{CallID: callID}); err != nil {
		return fmt.Errorf("call %s: %w", callID, err)
	}
	defer func() {
		if _, err := c.Dispatch(action.ZomeCallFinished{CallID: callID}); err != nil {
			c.Logger().Warn("finish zome call failed", "call", callID, "error", err)
		}
	}()
	return fn(code)
}
