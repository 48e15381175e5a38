package events

import (
	"encoding/hex"
	"strconv"

	"zaibatsu/core/types"
)

func formatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func newEvent(eventType string, attrs map[string]string) *types.Event {
	return &types.Event{Type: eventType, Attributes: attrs}
}
