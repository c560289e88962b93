// Package notifications announces pipeline milestones to configured webhook
// endpoints. Delivery failures never abort a run.
package notifications
