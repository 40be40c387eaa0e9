package domain

// ChangeFeed delivers insert/update/delete events for one owner.
// Events is closed after Unsubscribe or when the feed is lost.
type ChangeFeed interface {
	Events() <-chan Event
	Unsubscribe() error
}

// SessionWatch is a session change subscription. A nil value on
// Changes means the user is signed out.
type SessionWatch interface {
	Changes() <-chan *Session
	Unsubscribe()
}
