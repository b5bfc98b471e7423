package mcp

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/sjzar/mcpd/internal/mcp"
)

// Built-in tools. Integrations register their own next to these.
var (
	ToolEcho = mcp.Tool{
		Name:        "echo",
		Description: "Return the call arguments unchanged. Useful to check that a client reaches the server and that arguments survive the round trip.",
	}

	ToolCurrentTime = mcp.Tool{
		Name:        "current_time",
		Description: "Get the current time. Use it whenever the user asks about \"now\", \"today\" or relative dates such as \"last week\", since the model has no clock of its own.",
		Params: []mcp.Param{
			{
				Name:        "timezone",
				Type:        mcp.TypeString,
				Description: "IANA time zone name, e.g. Asia/Shanghai or America/New_York.",
			},
		},
	}
)

// RegisterBuiltins adds echo and current_time to r. defaultTZ is the zone
// current_time reports in when the caller names none.
func RegisterBuiltins(r *mcp.Registry, defaultTZ string) error {
	if _, err := time.LoadLocation(defaultTZ); err != nil {
		return fmt.Errorf("tools.timezone: %w", err)
	}

	currentTime := ToolCurrentTime
	currentTime.Params = append([]mcp.Param(nil), ToolCurrentTime.Params...)
	currentTime.Params[0].Default = defaultTZ

	if err := r.Register(ToolEcho, echo); err != nil {
		return err
	}
	return r.Register(currentTime, now(time.Now))
}

func echo(_ context.Context, args *mcp.Arguments) (*mcp.Result, error) {
	return mcp.OK().Set("echoed", args), nil
}

func now(clock func() time.Time) mcp.Handler {
	return func(_ context.Context, args *mcp.Arguments) (*mcp.Result, error) {
		name := args.String("timezone")
		loc, err := time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q", name)
		}
		t := clock().In(loc)
		return mcp.OK().
			Set("time", t.Format(time.RFC3339)).
			Set("timezone", loc.String()).
			Set("unix", t.Unix()), nil
	}
}
