package kv

// Key prefixes reproduced verbatim from the persisted key layout, for
// interoperability with any peer or tooling that inspects the store
// directly.
const (
	PrefixPaymentsKey               = "payments-key-"
	PrefixPaymentsTx                = "payments-tx-"
	PrefixPaymentsRestoreTx         = "payments-restoreTx-"
	PrefixPaymentsStashedRestoreTx  = "payments-stashedRestoreTx-"
	PrefixPaymentsIndex             = "payments-index-"
	PrefixPaymentsCurrentValue      = "payments-currentValue-"
	PrefixPaymentsOnChainBalance    = "payments-onChainBalance-"
	PrefixPaymentsInitialBalance    = "payments-initialBalance-"
	PrefixPaymentsTotalBalance      = "payments-totalBalance-"
	PrefixPaymentsChallenge         = "payments-challenge-"
	PrefixPacketTag                 = "packet-tag-"
)

// ChannelKey builds a key of the form prefix ‖ channelID(32) for the
// single-value-per-channel records in the abstract chain/store interfaces.
func ChannelKey(prefix string, channelID [32]byte) []byte {
	key := make([]byte, 0, len(prefix)+32)
	key = append(key, prefix...)
	key = append(key, channelID[:]...)
	return key
}

// ChallengeKey builds a "payments-challenge-" ‖ channelId(32) ‖
// challenge(33) key: the per-challenge nonce/key-half store the channel state machine's
// getPreviousChallenges iterates over.
func ChallengeKey(channelID [32]byte, challenge [33]byte) []byte {
	key := make([]byte, 0, len(PrefixPaymentsChallenge)+32+33)
	key = append(key, PrefixPaymentsChallenge...)
	key = append(key, channelID[:]...)
	key = append(key, challenge[:]...)
	return key
}

// PacketTagKey builds a "packet-tag-" ‖ tag(16) key.
func PacketTagKey(tag [16]byte) []byte {
	key := make([]byte, 0, len(PrefixPacketTag)+16)
	key = append(key, PrefixPacketTag...)
	key = append(key, tag[:]...)
	return key
}

// ChallengePrefix returns the scan bounds that select every challenge
// key stored for channelID, for use with Store.NewReadStream.
func ChallengePrefix(channelID [32]byte) (gte, lte []byte) {
	base := append([]byte(PrefixPaymentsChallenge), channelID[:]...)
	gte = append(append([]byte{}, base...), make([]byte, 33)...)
	upper := make([]byte, 33)
	for i := range upper {
		upper[i] = 0xff
	}
	lte = append(append([]byte{}, base...), upper...)
	return gte, lte
}
