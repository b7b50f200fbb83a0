// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package transport

import (
	"encoding/binary"
	"fmt"
	"io/fs"
	"sync/atomic"
	"unsafe"

	"github.com/creachadair/sluice/slot"
)

// A ring region is a 64-byte header followed by slotCount fixed-size slots.
// Each slot holds a 4-byte big-endian payload length and slotSize payload
// bytes, padded so slots stay 8-byte aligned. The write and read indices
// are monotonic; the slot for index i is i modulo slotCount. The producer
// owns widx and the consumer owns ridx, so the ring itself needs no lock:
// occupancy is bounded by the slot synchronizer whose counter words also
// live in the header.
const (
	ringMagic   = 0x534C5543 // "SLUC"
	ringVersion = 1

	headerSize = 64

	offMagic     = 0  // uint32
	offVersion   = 4  // uint32
	offSlotSize  = 8  // uint32
	offSlotCount = 12 // uint32
	offWidx      = 16 // uint64
	offRidx      = 24 // uint64
	offEmpty     = 32 // uint32, slot synchronizer empty count
	offFull      = 36 // uint32, slot synchronizer full count
	offFlags     = 40 // uint32, slot synchronizer close flags
	offProducer  = 44 // uint32, producer attach word
	offConsumer  = 48 // uint32, consumer attach word
)

func u32p(b []byte, off int) *uint32 { return (*uint32)(unsafe.Pointer(&b[off])) }
func u64p(b []byte, off int) *uint64 { return (*uint64)(unsafe.Pointer(&b[off])) }

// ringStride returns the byte stride between slots for the given payload
// size.
func ringStride(slotSize int) int { return (4 + slotSize + 7) &^ 7 }

// RingSize returns the total region size in bytes for a ring with the given
// slot payload size and slot count.
func RingSize(slotSize, slotCount int) int {
	return headerSize + slotCount*ringStride(slotSize)
}

// A Ring is a fixed-capacity circular record buffer laid out in a flat byte
// region, suitable for memory mapped into multiple processes. The region
// must be 8-byte aligned and at least RingSize bytes long.
//
// A Ring supports one producer and one consumer at a time; Claim and
// Release record attachment in the header, so the limit binds every process
// mapping the region. Transfers must be bracketed by the slot synchronizer
// bound to the header's counter words; the synchronizer's release and
// acquire operations order payload writes before the matching reads.
type Ring struct {
	mem       []byte
	slotSize  int
	slotCount int
	stride    int
	widx      *uint64
	ridx      *uint64
}

// NewRing formats mem as an empty ring with the given geometry and returns
// a Ring bound to it. It panics if mem is shorter than RingSize(slotSize,
// slotCount) or the geometry is not positive.
func NewRing(mem []byte, slotSize, slotCount int) *Ring {
	if slotSize < 1 || slotCount < 1 {
		panic(fmt.Sprintf("invalid ring geometry %d/%d", slotSize, slotCount))
	} else if len(mem) < RingSize(slotSize, slotCount) {
		panic(fmt.Sprintf("ring region too small: %d < %d", len(mem), RingSize(slotSize, slotCount)))
	}
	atomic.StoreUint32(u32p(mem, offSlotSize), uint32(slotSize))
	atomic.StoreUint32(u32p(mem, offSlotCount), uint32(slotCount))
	atomic.StoreUint64(u64p(mem, offWidx), 0)
	atomic.StoreUint64(u64p(mem, offRidx), 0)
	atomic.StoreUint32(u32p(mem, offEmpty), uint32(slotCount)) // all slots begin empty
	atomic.StoreUint32(u32p(mem, offFull), 0)
	atomic.StoreUint32(u32p(mem, offFlags), 0)
	atomic.StoreUint32(u32p(mem, offProducer), 0)
	atomic.StoreUint32(u32p(mem, offConsumer), 0)
	atomic.StoreUint32(u32p(mem, offVersion), ringVersion)

	// The magic is stored last: an attacher that observes it can rely on
	// the rest of the header being complete.
	atomic.StoreUint32(u32p(mem, offMagic), ringMagic)
	return bindRing(mem, slotSize, slotCount)
}

// AttachRing validates the header of a formatted ring region and returns a
// Ring bound to it.
func AttachRing(mem []byte) (*Ring, error) {
	if len(mem) < headerSize {
		return nil, fmt.Errorf("ring region too small: %d bytes", len(mem))
	}
	if m := atomic.LoadUint32(u32p(mem, offMagic)); m != ringMagic {
		return nil, fmt.Errorf("invalid ring magic %08x", m)
	}
	if v := atomic.LoadUint32(u32p(mem, offVersion)); v != ringVersion {
		return nil, fmt.Errorf("unsupported ring version %d", v)
	}
	slotSize := int(atomic.LoadUint32(u32p(mem, offSlotSize)))
	slotCount := int(atomic.LoadUint32(u32p(mem, offSlotCount)))
	if slotSize < 1 || slotCount < 1 || len(mem) < RingSize(slotSize, slotCount) {
		return nil, fmt.Errorf("corrupt ring header: %d slots of %d bytes in %d-byte region",
			slotCount, slotSize, len(mem))
	}
	return bindRing(mem, slotSize, slotCount), nil
}

func bindRing(mem []byte, slotSize, slotCount int) *Ring {
	return &Ring{
		mem:       mem,
		slotSize:  slotSize,
		slotCount: slotCount,
		stride:    ringStride(slotSize),
		widx:      u64p(mem, offWidx),
		ridx:      u64p(mem, offRidx),
	}
}

// Words returns pointers to the slot synchronizer counter words reserved in
// the ring header: the empty count, the full count, and the close flags.
func (r *Ring) Words() (empty, full, flags *uint32) {
	return u32p(r.mem, offEmpty), u32p(r.mem, offFull), u32p(r.mem, offFlags)
}

// Claim attaches the producer (write) or consumer side of the ring, and
// fails if that side is already attached. The claim is a word in the ring
// header, so it also excludes endpoints in other processes mapping the
// region.
func (r *Ring) Claim(write bool) error {
	if write {
		if !atomic.CompareAndSwapUint32(u32p(r.mem, offProducer), 0, 1) {
			return fmt.Errorf("producer endpoint: %w", fs.ErrExist)
		}
	} else if !atomic.CompareAndSwapUint32(u32p(r.mem, offConsumer), 0, 1) {
		return fmt.Errorf("consumer endpoint: %w", fs.ErrExist)
	}
	return nil
}

// Release detaches the side of the ring attached by Claim.
func (r *Ring) Release(write bool) {
	if write {
		atomic.StoreUint32(u32p(r.mem, offProducer), 0)
	} else {
		atomic.StoreUint32(u32p(r.mem, offConsumer), 0)
	}
}

// SlotSize reports the maximum payload bytes per record.
func (r *Ring) SlotSize() int { return r.slotSize }

// SlotCount reports the number of slots in the ring.
func (r *Ring) SlotCount() int { return r.slotCount }

// Send implements part of the Transport interface. The caller must hold an
// empty slot, and must be the only producer.
func (r *Ring) Send(rec Record) error {
	if len(rec.Data) > r.slotSize {
		return ErrTooLarge
	}
	w := atomic.LoadUint64(r.widx)
	off := headerSize + int(w%uint64(r.slotCount))*r.stride
	binary.BigEndian.PutUint32(r.mem[off:off+4], uint32(len(rec.Data)))
	copy(r.mem[off+4:off+4+len(rec.Data)], rec.Data)
	atomic.StoreUint64(r.widx, w+1)
	return nil
}

// Recv implements part of the Transport interface. The caller must hold a
// full slot, and must be the only consumer. Ring records do not carry type
// tags.
func (r *Ring) Recv() (Record, error) {
	rd := atomic.LoadUint64(r.ridx)
	off := headerSize + int(rd%uint64(r.slotCount))*r.stride
	size := binary.BigEndian.Uint32(r.mem[off : off+4])
	if int(size) > r.slotSize {
		return Record{}, fmt.Errorf("corrupt ring slot: length %d exceeds %d", size, r.slotSize)
	}
	data := make([]byte, int(size))
	copy(data, r.mem[off+4:off+4+int(size)])
	atomic.StoreUint64(r.ridx, rd+1)
	return Record{Data: data}, nil
}

// Close implements part of the Transport interface. The region itself is
// owned by the caller; closing a Ring is a no-op.
func (r *Ring) Close() error { return nil }

var rings = newRegistry[*memRing]()

// A memRing is an in-process shared ring: a heap-allocated ring region plus
// the counting synchronizer that bounds it. The ring's attach words admit
// one producer and one consumer endpoint at a time.
type memRing struct {
	ring *Ring
	sync *slot.Counting
}

func newMemRing(slotSize, slotCount int) *memRing {
	size := RingSize(slotSize, slotCount)

	// Allocate as uint64 words so the header fields are 8-byte aligned.
	words := make([]uint64, (size+7)/8)
	mem := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)
	return &memRing{
		ring: NewRing(mem, slotSize, slotCount),
		sync: slot.NewCounting(slotCount),
	}
}

// OpenRing opens the producer (write) or consumer endpoint of the
// in-process shared ring registered under name, creating the ring if
// cfg.Create is set and none exists. Each side of a ring admits one
// endpoint at a time; a second open of the same side fails.
func OpenRing(name string, write bool, cfg Config) (*Endpoint, error) {
	m, created, err := rings.open(name, cfg.Create, cfg.Exclusive, func() (*memRing, error) {
		return newMemRing(cfg.SlotSize, cfg.Capacity), nil
	})
	if err != nil {
		return nil, err
	}
	if err := m.ring.Claim(write); err != nil {
		rings.release(name)
		return nil, err
	}
	return &Endpoint{
		Transport: ringEndpoint{m: m, name: name, write: write},
		Sync:      m.sync,
		Creator:   created,
		Signal:    true,
		Capacity:  m.ring.SlotCount(),
		SlotSize:  m.ring.SlotSize(),
	}, nil
}

// A ringEndpoint is one endpoint's handle on a shared memRing.
type ringEndpoint struct {
	m     *memRing
	name  string
	write bool
}

// Send implements part of the Transport interface.
func (e ringEndpoint) Send(rec Record) error { return e.m.ring.Send(rec) }

// Recv implements part of the Transport interface.
func (e ringEndpoint) Recv() (Record, error) { return e.m.ring.Recv() }

// Close implements part of the Transport interface.
func (e ringEndpoint) Close() error {
	e.m.ring.Release(e.write)
	rings.release(e.name)
	return nil
}

// Destroy implements the Destroyer interface. The name is unlinked;
// attached endpoints keep the ring alive until they close, and records
// already staged remain drainable.
func (e ringEndpoint) Destroy() error {
	rings.remove(e.name)
	return nil
}
