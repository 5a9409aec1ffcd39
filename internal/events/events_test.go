package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_KeysBySellOffer(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msgs, err := encode([]OfferEvent{
		{OfferID: 1, Kind: "sell", SellID: 1, Seller: "alice", To: "sell.active", At: at},
		{OfferID: 2, Kind: "buy", SellID: 1, Seller: "alice", Buyer: "bob", Actor: "alice", Amount: 400000, From: "buy.pending", To: "buy.accepted", At: at},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "1", string(msgs[0].Key))
	assert.Equal(t, "1", string(msgs[1].Key))
	assert.Equal(t, at, msgs[1].Time)

	var decoded OfferEvent
	require.NoError(t, json.Unmarshal(msgs[1].Value, &decoded))
	assert.Equal(t, "buy.accepted", decoded.To)
	assert.Equal(t, "bob", decoded.Buyer)
	assert.Equal(t, "alice", decoded.Actor)
	assert.Equal(t, int64(400000), decoded.Amount)
}
