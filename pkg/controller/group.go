package controller

import (
	"fmt"

	"github.com/backkem/matter-hmi/pkg/clusters"
	"github.com/backkem/matter-hmi/pkg/subscription"
)

// groupSend transmits action to the group of t. Group sends do not touch
// the subscription tracker.
func (c *Controller) groupSend(req Request, t target, action clusters.Action) {
	if !action.Groupcast {
		err := fmt.Errorf("%w: %s cannot be sent to a group", ErrUnsupportedAction, action)
		if c.log != nil {
			c.log.Errorf("dispatch %s: #%d: %v", req.ID, t.index, err)
		}
		c.listener.OnFailure(t.index, subscription.OpGroupSend, err)
		return
	}

	if err := c.transport.GroupSend(t.entry.FabricIndex, t.entry.GroupID, action); err != nil {
		if c.log != nil {
			c.log.Errorf("dispatch %s: group %s on fabric %d: %v", req.ID, t.entry.GroupID, t.entry.FabricIndex, err)
		}
		c.listener.OnFailure(t.index, subscription.OpGroupSend, err)
		return
	}
	if c.log != nil {
		c.log.Infof("dispatch %s: %s sent to %s", req.ID, action, t.entry.GroupID)
	}
}
