package nodes

import (
	"context"

	"github.com/ringlink/ringlink/internal/logging"
)

// ControllerAddress is the fixed address of the bridge's own node.
const ControllerAddress = "controller"

// ControllerNode represents the bridge itself. DISCOVER re-runs device
// discovery; QUERY reports the bridge as online.
type ControllerNode struct {
	reporter Reporter
	discover func(ctx context.Context) error
	logger   *logging.Logger
}

func NewControllerNode(reporter Reporter, discover func(ctx context.Context) error) *ControllerNode {
	return &ControllerNode{
		reporter: reporter,
		discover: discover,
		logger:   logging.NewLogger(),
	}
}

func (n *ControllerNode) Address() string { return ControllerAddress }
func (n *ControllerNode) Name() string    { return "Ring Bridge" }
func (n *ControllerNode) Kind() string    { return KindController }

func (n *ControllerNode) Handlers() map[Command]HandlerFunc {
	return map[Command]HandlerFunc{
		CmdQuery: func(context.Context) error {
			n.reporter.SetDriver(ControllerAddress, DriverStatus, 1)
			return nil
		},
		CmdDiscover: func(ctx context.Context) error {
			n.logger.Info("discovery requested")
			return n.discover(ctx)
		},
	}
}
