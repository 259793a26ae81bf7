package orchestrator

import (
	"github.com/fxlane/fxlane/internal/schema"
	"github.com/fxlane/fxlane/internal/transport"
)

// initiatorsFor reports which participant roles may request the given event.
// Events absent from the result are backend-driven only: escrow settlement is
// observed through reconciliation, and dispute resolution belongs to
// arbitration staff.
func initiatorsFor(trade schema.Trade, event schema.TradeEvent) []schema.Role {
	switch event {
	case schema.EventAccept:
		return []schema.Role{schema.RoleMaker}
	case schema.EventCancel:
		return []schema.Role{schema.RoleMaker, schema.RoleTaker}
	case schema.EventPaymentSent:
		return []schema.Role{trade.PayerRole()}
	case schema.EventConfirmPayment:
		return []schema.Role{trade.PayeeRole()}
	case schema.EventRelease:
		return []schema.Role{trade.PayeeRole()}
	case schema.EventDispute:
		return []schema.Role{schema.RoleMaker, schema.RoleTaker}
	default:
		return nil
	}
}

func roleAllowed(roles []schema.Role, role schema.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// actionFor maps a lifecycle event to the backend mutation that requests it.
func actionFor(event schema.TradeEvent) (transport.Action, bool) {
	switch event {
	case schema.EventAccept:
		return transport.ActionAccept, true
	case schema.EventCancel:
		return transport.ActionCancel, true
	case schema.EventPaymentSent:
		return transport.ActionPaymentSent, true
	case schema.EventConfirmPayment:
		return transport.ActionConfirmPayment, true
	case schema.EventRelease:
		return transport.ActionComplete, true
	default:
		return "", false
	}
}
