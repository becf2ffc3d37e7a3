package controller

import (
	"fmt"
	"time"

	"github.com/backkem/matter-hmi/pkg/binding"
	"github.com/backkem/matter-hmi/pkg/clusters"
	"github.com/backkem/matter-hmi/pkg/clusters/generaldiagnostics"
	"github.com/backkem/matter-hmi/pkg/datamodel"
	"github.com/backkem/matter-hmi/pkg/subscription"
)

func (c *Controller) readDeviceInfo(cc *connectContext, sess Session) {
	p, epoch := cc.index, cc.epoch

	_ = c.tracker.Begin(p, subscription.OpRead)
	err := c.transport.ReadAttribute(sess, clusters.DeviceInfoPath,
		func(v any) { c.post(func() { c.onDeviceInfo(p, epoch, v) }) },
		func(err error) { c.post(func() { c.onDeviceInfoFailed(p, epoch, err) }) },
	)
	if err != nil {
		c.onDeviceInfoFailed(p, epoch, err)
	}
}

func (c *Controller) onDeviceInfo(p binding.PeerIndex, epoch uint64, v any) {
	if !c.current(p, epoch) {
		return
	}

	var ifaces []generaldiagnostics.NetworkInterface
	switch v := v.(type) {
	case []generaldiagnostics.NetworkInterface:
		ifaces = v
	case generaldiagnostics.NetworkInterface:
		ifaces = []generaldiagnostics.NetworkInterface{v}
	default:
		c.onDeviceInfoFailed(p, epoch, fmt.Errorf("%w: %T", ErrUnexpectedValue, v))
		return
	}

	_ = c.tracker.Finish(p, subscription.OpRead, nil)
	c.listener.OnConnectionStatus(p, true)
	for _, iface := range ifaces {
		if c.log != nil {
			c.log.Debugf("#%d: interface %q type %s operational=%t", p, iface.Name, iface.Type, iface.Operational)
		}
		c.listener.OnDeviceMetadata(p, iface.Type)
	}
}

func (c *Controller) onDeviceInfoFailed(p binding.PeerIndex, epoch uint64, err error) {
	if !c.current(p, epoch) {
		return
	}
	_ = c.tracker.Finish(p, subscription.OpRead, err)
	if c.log != nil {
		c.log.Errorf("#%d: device info read failed: %v", p, err)
	}
	c.listener.OnConnectionStatus(p, false)
	c.listener.OnFailure(p, subscription.OpRead, err)
}

func (c *Controller) subscribe(cc *connectContext, sess Session) {
	p, epoch := cc.index, cc.epoch
	path := cc.cluster.ReportPath(cc.entry.RemoteEndpoint)

	_ = c.tracker.Begin(p, subscription.OpSubscribe)
	err := c.transport.SubscribeAttribute(sess, path, c.params, SubscribeCallbacks{
		OnReport: func(path datamodel.ConcreteAttributePath, v any) {
			c.post(func() { c.onReport(p, epoch, path, v) })
		},
		OnError: func(err error) {
			c.post(func() { c.onSubscribeError(p, epoch, err) })
		},
		OnEstablished: func() {
			c.post(func() { c.onSubscribed(p, epoch, path) })
		},
		OnResubscribe: func(cause error, next time.Duration) {
			c.post(func() { c.onResubscribe(p, epoch, cause, next) })
		},
	})
	if err != nil {
		c.onSubscribeError(p, epoch, err)
	}
}

func (c *Controller) onSubscribed(p binding.PeerIndex, epoch uint64, path datamodel.ConcreteAttributePath) {
	if !c.current(p, epoch) {
		return
	}
	_ = c.tracker.Finish(p, subscription.OpSubscribe, nil)
	if c.log != nil {
		c.log.Infof("#%d: subscribed to %s", p, path)
	}
}

func (c *Controller) onReport(p binding.PeerIndex, epoch uint64, path datamodel.ConcreteAttributePath, v any) {
	if !c.current(p, epoch) {
		return
	}
	if c.log != nil {
		c.log.Tracef("#%d: report %s = %v", p, path, v)
	}
	c.listener.OnAttributeUpdate(p, AttributeUpdate{Path: path, Value: v})
}

func (c *Controller) onSubscribeError(p binding.PeerIndex, epoch uint64, err error) {
	if !c.current(p, epoch) {
		return
	}
	_ = c.tracker.Finish(p, subscription.OpSubscribe, err)
	if c.log != nil {
		c.log.Errorf("#%d: subscription error: %v", p, err)
	}
	c.listener.OnFailure(p, subscription.OpSubscribe, err)
}

func (c *Controller) onResubscribe(p binding.PeerIndex, epoch uint64, cause error, next time.Duration) {
	if !c.current(p, epoch) || c.log == nil {
		return
	}
	c.log.Warnf("#%d: resubscribing in %s after: %v", p, next, cause)
}
