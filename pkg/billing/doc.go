// Package billing stores plans, subscriptions and payments, and decides whether a
// workspace is entitled to use the product.
//
// # Plans
//
// A plan is a priced tier (prices in cents) with two ceilings, MaxUsers and
// MaxProperties. The ceilings are exposed through Guard.Limits; enforcing them
// is up to callers.
//
// # Subscriptions
//
// A workspace has at most one open (trial or active) subscription. The store
// checks this inside the insert transaction, and a partial unique index
// backs the check in the database:
//
//	sub, err := store.CreateSubscription(ctx, billing.CreateSubscriptionInput{
//		WorkspaceID:  ws.ID,
//		PlanID:       plan.ID,
//		BillingCycle: billing.BillingCycleMonthly,
//		StartDate:    now,
//		EndDate:      now.AddDate(0, 1, 0),
//		TrialEndsAt:  &trialEnd,
//	})
//
// # Entitlement
//
// Guard evaluates the open subscription against the current time:
//
//	guard := billing.NewGuard(store)
//	ok, err := guard.IsEntitled(ctx, ws.ID)
//
// A trial entitles while trial_ends_at is unset or in the future. An active
// subscription entitles while end_date is in the future. Expired and cancelled
// subscriptions, a missing subscription and more than one open subscription
// all deny. Only store failures surface as errors.
//
// # Payments
//
// Payments are recorded as pending and settled exactly once, to success
// (stamping paid_at) or failed.
package billing
