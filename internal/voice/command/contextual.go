package command

import (
	"context"
	"strconv"

	"eatech-voice/internal/voice/conversation"
	"eatech-voice/pkg/nlp"
)

// resolveContext settles the live context with a confirm or deny. The
// context is consumed unless a confirmation still lacks required details.
func (e *Executor) resolveContext(ctx context.Context, c conversation.Context, cmd Command) (Result, error) {
	confirmed := cmd.Intent == nlp.IntentConfirm

	switch c.Type {
	case conversation.OrderCreation:
		if !confirmed {
			e.contexts.Clear()
			return success(cmd.Intent, Localize(cmd.Language, "order_discarded"), nil), nil
		}
		return e.submitOrder(ctx, c, cmd)

	case conversation.Reservation:
		if !confirmed {
			e.contexts.Clear()
			return success(cmd.Intent, Localize(cmd.Language, "reservation_discarded"), nil), nil
		}
		return e.submitReservation(ctx, c, cmd)

	case conversation.Payment:
		if !confirmed {
			e.contexts.Clear()
			return success(cmd.Intent, Localize(cmd.Language, "deny_ok"), nil), nil
		}
		if method := c.Payload["method"]; method != "" {
			return e.sendBill(ctx, cmd.Language, method)
		}
		return success("bill", Localize(cmd.Language, "bill_ask_method"), nil), nil

	case conversation.ProductSelection:
		e.contexts.Clear()
		if confirmed {
			return success(cmd.Intent, Localize(cmd.Language, "deny_ok"), nil), nil
		}
		// "no" right after adding undoes that add only.
		item := c.Payload["item"]
		if e.deps.Cart == nil {
			return Result{}, errUnavailable
		}
		held := heldBefore(c.Payload)
		if err := e.setHeld(ctx, item, held); err != nil {
			return Result{}, err
		}
		if held > 0 {
			return success(nlp.IntentRemoveFromCart, Localize(cmd.Language, "quantity_set", held, item),
				map[string]interface{}{"item": item, "quantity": held}), nil
		}
		return success(nlp.IntentRemoveFromCart, Localize(cmd.Language, "cart_removed", item),
			map[string]interface{}{"item": item}), nil
	}

	e.contexts.Clear()
	return success(cmd.Intent, Localize(cmd.Language, "deny_ok"), nil), nil
}

func (e *Executor) submitOrder(ctx context.Context, c conversation.Context, cmd Command) (Result, error) {
	e.contexts.Clear()
	if e.deps.Cart == nil || e.deps.Orders == nil {
		return Result{}, errUnavailable
	}
	items, err := e.deps.Cart.Items(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(items) == 0 {
		return rejected(nlp.IntentCreateOrder, Localize(cmd.Language, "order_empty")), nil
	}
	table := e.currentTable()
	if n, err := strconv.Atoi(c.Payload["table"]); err == nil && n > 0 {
		table = n
	}
	order, err := e.deps.Orders.CreateOrder(ctx, OrderRequest{
		Items:         items,
		PaymentMethod: c.Payload["method"],
		Table:         table,
		PickupTime:    c.Payload["time"],
		Language:      cmd.Language,
	})
	if err != nil {
		return Result{}, err
	}
	return success(nlp.IntentCreateOrder, Localize(cmd.Language, "order_created", order.ID),
		map[string]interface{}{"order": order}), nil
}

func (e *Executor) submitReservation(ctx context.Context, c conversation.Context, cmd Command) (Result, error) {
	guests, _ := strconv.Atoi(c.Payload["guests"])
	if guests < 1 || c.Payload["time"] == "" {
		return e.reservationPrompt(cmd.Language, c.Payload), nil
	}
	e.contexts.Clear()
	if e.deps.Restaurant == nil {
		return Result{}, errUnavailable
	}
	table, _ := strconv.Atoi(c.Payload["table"])
	id, err := e.deps.Restaurant.Reserve(ctx, Reservation{
		Guests:   guests,
		Date:     c.Payload["date"],
		Time:     c.Payload["time"],
		Table:    table,
		Language: cmd.Language,
	})
	if err != nil {
		return Result{}, err
	}
	return success(nlp.IntentReserveTable, Localize(cmd.Language, "reservation_done", id),
		map[string]interface{}{"reservation": id, "guests": guests}), nil
}

// continueContext answers an intent that was merged into the live context.
func (e *Executor) continueContext(ctx context.Context, c conversation.Context, cmd Command) (Result, error) {
	switch c.Type {
	case conversation.ProductSelection:
		if e.deps.Cart == nil {
			return Result{}, errUnavailable
		}
		item := c.Payload["item"]
		qty := quantity(c.Payload)
		if err := e.setHeld(ctx, item, heldBefore(c.Payload)+qty); err != nil {
			return Result{}, err
		}
		return success(cmd.Intent, Localize(cmd.Language, "quantity_set", qty, item),
			map[string]interface{}{"item": item, "quantity": qty}), nil

	case conversation.OrderCreation:
		switch cmd.Intent {
		case nlp.IntentSetPayment:
			return success(cmd.Intent, Localize(cmd.Language, "payment_set", c.Payload["method"]),
				map[string]interface{}{"method": c.Payload["method"]}), nil
		case nlp.IntentSetTime:
			return success(cmd.Intent, Localize(cmd.Language, "pickup_set", c.Payload["time"]),
				map[string]interface{}{"time": c.Payload["time"]}), nil
		case nlp.IntentSelectTable:
			return e.selectTable(ctx, cmd)
		}

	case conversation.Reservation:
		return e.reservationPrompt(cmd.Language, c.Payload), nil

	case conversation.Payment:
		return e.sendBill(ctx, cmd.Language, c.Payload["method"])
	}

	return rejected(cmd.Intent, Localize(cmd.Language, "context_missing")), nil
}
