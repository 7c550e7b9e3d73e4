// Package mocks provides hand-written mocks of the service interfaces
// shared by several test packages.
//
// Each mock records its calls and returns either the result of its Fn hook,
// when set, or its default values:
//
//	sender := &mocks.MockSender{Err: errors.New("gateway down")}
//	notifier := notification.NewGoalNotifier(counter, sender, cfg, nil)
//	...
//	assert.Len(t, sender.Notifications(), 1)
package mocks
