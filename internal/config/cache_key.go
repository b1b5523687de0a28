package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionAnswersKey returns the cache key for a session's autosaved answers.
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// SessionStartKey returns the cache key for a session's start timestamp.
func (r *CacheKeyStruct) SessionStartKey(sessionID string) string {
	return fmt.Sprintf("session:%s:started_at", sessionID)
}

// TicketSessionKey returns the cache key mapping a ticket code to its live
// session id.
func (r *CacheKeyStruct) TicketSessionKey(ticketCode string) string {
	return fmt.Sprintf("ticket:%s:session", ticketCode)
}

var CacheKey = NewCacheKeyStruct()
