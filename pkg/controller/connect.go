package controller

import (
	"fmt"
	"sync/atomic"

	"github.com/backkem/matter-hmi/pkg/binding"
	"github.com/backkem/matter-hmi/pkg/clusters"
	"github.com/backkem/matter-hmi/pkg/subscription"
)

// connectContext is the state carried through one unicast connect.
// It is owned by the controller from connect until release.
type connectContext struct {
	req     Request
	index   binding.PeerIndex
	entry   binding.Entry
	action  clusters.Action
	cluster clusters.Cluster
	epoch   uint64

	// claimed is set by the first connect outcome; later ones are ignored.
	claimed atomic.Bool
}

func (c *Controller) track(cc *connectContext) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.pending[cc] = struct{}{}
	return true
}

// release drops cc from the pending set. Releasing twice is a no-op.
func (c *Controller) release(cc *connectContext) {
	c.mu.Lock()
	_, ok := c.pending[cc]
	delete(c.pending, cc)
	c.mu.Unlock()

	if ok && c.log != nil {
		c.log.Tracef("dispatch %s: released connect context for #%d", cc.req.ID, cc.index)
	}
}

func (c *Controller) connect(req Request, t target, action clusters.Action, cluster clusters.Cluster) {
	cc := &connectContext{
		req:     req,
		index:   t.index,
		entry:   t.entry,
		action:  action,
		cluster: cluster,
		epoch:   c.epochs[t.index.Position()],
	}
	if !c.track(cc) {
		if c.log != nil {
			c.log.Errorf("dispatch %s: cannot connect to #%d: %v", req.ID, t.index, ErrClosed)
		}
		return
	}

	_ = c.tracker.Begin(t.index, subscription.OpConnect)
	if c.log != nil {
		c.log.Debugf("dispatch %s: connecting to #%d (%s)", req.ID, t.index, t.entry.Peer())
	}

	c.connector.Connect(t.entry.Peer(), ConnectCallbacks{
		OnConnected: func(sess Session) {
			c.complete(cc, func() { c.onConnected(cc, sess) })
		},
		OnFailure: func(err error) {
			c.complete(cc, func() { c.onConnectFailed(cc, err) })
		},
		OnRelease: func() {
			c.complete(cc, nil)
		},
	})
}

// complete runs the first connect outcome for cc on the worker and then
// releases cc. If the worker is gone, cc is released directly.
func (c *Controller) complete(cc *connectContext, fn func()) {
	if !cc.claimed.CompareAndSwap(false, true) {
		if c.log != nil {
			c.log.Warnf("dispatch %s: ignoring duplicate connect outcome for #%d", cc.req.ID, cc.index)
		}
		return
	}

	err := c.worker.Post(c.ctx, func() {
		defer c.release(cc)
		if fn != nil && !c.isClosed() {
			fn()
		}
	})
	if err != nil {
		if c.log != nil {
			c.log.Debugf("dispatch %s: dropping connect outcome for #%d: %v", cc.req.ID, cc.index, err)
		}
		c.release(cc)
	}
}

// stale reports whether the binding cc was resolved against is gone.
func (c *Controller) stale(cc *connectContext) bool {
	if !c.current(cc.index, cc.epoch) {
		return true
	}
	e, ok := c.table.GetAt(cc.index.Position())
	return !ok || e != cc.entry
}

func (c *Controller) onConnected(cc *connectContext, sess Session) {
	if c.stale(cc) {
		if c.log != nil {
			c.log.Warnf("dispatch %s: #%d: %v", cc.req.ID, cc.index, ErrBindingChanged)
		}
		return
	}
	_ = c.tracker.Finish(cc.index, subscription.OpConnect, nil)
	if c.log != nil {
		c.log.Debugf("dispatch %s: connected to #%d", cc.req.ID, cc.index)
	}

	// The flag is set before the read and subscribe are sent and stays set
	// if either fails. Only Unbind and FactoryReset clear it.
	first, _ := c.tracker.MarkSubscribed(cc.index)
	if first {
		c.readDeviceInfo(cc, sess)
		c.subscribe(cc, sess)
	}
	c.invoke(cc, sess)
}

func (c *Controller) onConnectFailed(cc *connectContext, cause error) {
	if c.stale(cc) {
		if c.log != nil {
			c.log.Debugf("dispatch %s: ignoring connect failure for rebound #%d: %v", cc.req.ID, cc.index, cause)
		}
		return
	}

	err := fmt.Errorf("%w: %s: %w", ErrPeerUnreachable, cc.entry.Peer(), cause)
	_ = c.tracker.Finish(cc.index, subscription.OpConnect, err)
	if c.log != nil {
		c.log.Errorf("dispatch %s: connect to #%d failed: %v", cc.req.ID, cc.index, err)
	}
	c.listener.OnConnectionStatus(cc.index, false)
	c.listener.OnFailure(cc.index, subscription.OpConnect, err)
}

func (c *Controller) invoke(cc *connectContext, sess Session) {
	p, epoch, id, action := cc.index, cc.epoch, cc.req.ID, cc.action

	_ = c.tracker.Begin(p, subscription.OpInvoke)
	err := c.transport.InvokeCommand(sess, cc.entry.RemoteEndpoint, action, func(err error) {
		c.post(func() { c.onInvokeDone(id, p, epoch, action, err) })
	})
	if err != nil {
		c.onInvokeDone(id, p, epoch, action, err)
	}
}

func (c *Controller) onInvokeDone(id string, p binding.PeerIndex, epoch uint64, action clusters.Action, err error) {
	if !c.current(p, epoch) {
		return
	}
	_ = c.tracker.Finish(p, subscription.OpInvoke, err)
	if err != nil {
		if c.log != nil {
			c.log.Errorf("dispatch %s: %s on #%d failed: %v", id, action, p, err)
		}
		c.listener.OnFailure(p, subscription.OpInvoke, err)
		return
	}
	if c.log != nil {
		c.log.Infof("dispatch %s: %s on #%d succeeded", id, action, p)
	}
}
