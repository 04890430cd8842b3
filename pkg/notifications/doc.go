// Package notifications stores in-app notifications and sends their email copies.
//
// Email is a side effect: a failed send is logged and never fails the operation
// that triggered it. Users opt out of email with the unsubscribe token included
// in every message.
package notifications
