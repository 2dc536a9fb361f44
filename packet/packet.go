package packet

import "errors"

// ErrWrongSize is returned by FromBuffer when the input is not exactly
// Size bytes. A trusted transport delivering a mis-sized frame is a fatal
// error (the fatal class); an untrusted one is simply malformed input the caller drops.
var ErrWrongSize = errors.New("packet: frame is not the fixed packet size")

// Message is the fixed-size onion-encrypted message body (the wire format).
type Message [MessageSize]byte

// Packet is the concatenation of the four fixed byte-ranges described in
// the wire format: Header ‖ Transaction ‖ Challenge ‖ Message. There are no length
// prefixes anywhere; every range has a compile-time-fixed size.
type Packet struct {
	Header      Header
	Transaction EncryptedTransaction
	Challenge   Challenge
	Message     Message
}

// ToBuffer serializes the packet to its fixed-size wire representation.
func (p *Packet) ToBuffer() []byte {
	buf := make([]byte, Size)

	p.Header.Encode(buf[:HeaderSize])
	copy(buf[HeaderSize:HeaderSize+TransactionSize], p.Transaction[:])
	p.Challenge.Encode(buf[HeaderSize+TransactionSize : HeaderSize+TransactionSize+ChallengeSize])
	copy(buf[HeaderSize+TransactionSize+ChallengeSize:], p.Message[:])

	return buf
}

// FromBuffer parses a packet from its fixed-size wire representation. Any
// frame that is not exactly Size bytes is rejected outright (the wire format).
func FromBuffer(buf []byte) (*Packet, error) {
	if len(buf) != Size {
		return nil, ErrWrongSize
	}

	header, err := DecodeHeader(buf[:HeaderSize])
	if err != nil {
		return nil, err
	}

	ch, err := DecodeChallenge(buf[HeaderSize+TransactionSize : HeaderSize+TransactionSize+ChallengeSize])
	if err != nil {
		return nil, err
	}

	p := &Packet{
		Header:    *header,
		Challenge: *ch,
	}
	copy(p.Transaction[:], buf[HeaderSize:HeaderSize+TransactionSize])
	copy(p.Message[:], buf[HeaderSize+TransactionSize+ChallengeSize:])

	return p, nil
}
