package detector

import "encoding/binary"

// Generator produces the opaque upload payload bytes for the three
// object identifiers a detector uploads. The session core never inspects
// these bytes beyond their length; a real detector would source them
// from its own sensor hardware instead of synthesizing them.
type Generator interface {
	Realtime(channel uint8) []byte
	Statistics(channel uint8) []byte
	Status(channels int) []byte
}

// counterGenerator produces deterministic, monotonically-varying sample
// values instead of random ones, so repeated runs are easy to compare in
// logs.
type counterGenerator struct {
	tick uint32
}

// NewGenerator returns the default deterministic payload generator.
func NewGenerator() Generator {
	return &counterGenerator{}
}

// Realtime encodes one TRAFFIC_REALTIME sample: channel id, three
// vehicle-class counts, time occupancy (0.1% units), speed, length
// (0.1m units), headway, gap time, stop count, and stop duration —
// 14 bytes, no occupancy-sample trailer.
func (g *counterGenerator) Realtime(channel uint8) []byte {
	g.tick++
	b := make([]byte, 14)
	b[0] = channel
	b[1] = byte(g.tick % 5)      // class A (>=12m)
	b[2] = byte((g.tick + 1) % 8) // class B (6-12m)
	b[3] = byte((g.tick + 2) % 20) // class C (<6m)
	binary.LittleEndian.PutUint16(b[4:6], uint16((g.tick*37)%1000)) // time occupancy, 0.1%
	b[6] = byte(20 + g.tick%60)                                     // speed km/h
	binary.LittleEndian.PutUint16(b[7:9], uint16(30+g.tick%50))     // length, 0.1m
	b[9] = byte(10 + g.tick%40)  // headway, 0.1s
	b[10] = byte(5 + g.tick%20)  // gap time, 0.1s
	b[11] = byte(g.tick % 3)     // stop count
	b[12] = byte(g.tick % 10)    // stop duration, 0.1s
	b[13] = 0                    // occupancy sample count
	return b
}

// Statistics encodes a wider aggregate sample: channel id, the three
// vehicle-class counts, time occupancy, speed, length and stop count as
// 16-bit values (a statistics interval aggregates many vehicles), then a
// one-byte stop duration — 16 bytes. Unlike Realtime it carries no
// headway or gap time.
func (g *counterGenerator) Statistics(channel uint8) []byte {
	g.tick++
	b := make([]byte, 16)
	b[0] = channel
	binary.LittleEndian.PutUint16(b[1:3], uint16(g.tick%500))
	binary.LittleEndian.PutUint16(b[3:5], uint16((g.tick+1)%800))
	binary.LittleEndian.PutUint16(b[5:7], uint16((g.tick+2)%2000))
	binary.LittleEndian.PutUint16(b[7:9], uint16((g.tick*37)%1000))
	binary.LittleEndian.PutUint16(b[9:11], uint16(20+g.tick%60))
	binary.LittleEndian.PutUint16(b[11:13], uint16(30+g.tick%50))
	binary.LittleEndian.PutUint16(b[13:15], uint16(g.tick%3))
	b[15] = byte(g.tick % 10)
	return b
}

// Status encodes one (channel id, status) pair per channel, status 0
// meaning normal and 1 meaning abnormal.
func (g *counterGenerator) Status(channels int) []byte {
	b := make([]byte, channels*2)
	for i := 0; i < channels; i++ {
		b[i*2] = byte(i + 1)
		b[i*2+1] = 0 // normal; a real detector would report actual fault state
	}
	return b
}
