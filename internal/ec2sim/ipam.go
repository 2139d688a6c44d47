package ec2sim

import (
	"encoding/binary"
	"net/netip"
)

// AWS reserves the first four addresses and the last address of every subnet.
const (
	reservedHead = 4
	reservedTail = 1
)

// addressPool hands out private IPv4 addresses inside a subnet.
type addressPool struct {
	prefix netip.Prefix
	used   map[netip.Addr]string
}

func newAddressPool(prefix netip.Prefix) *addressPool {
	return &addressPool{prefix: prefix, used: make(map[netip.Addr]string)}
}

func (p *addressPool) bounds() (first, last uint32) {
	base := addrToUint32(p.prefix.Addr())
	size := uint32(1) << (32 - p.prefix.Bits())
	return base + reservedHead, base + size - 1 - reservedTail
}

// available returns the number of addresses that can still be assigned.
func (p *addressPool) available() int32 {
	first, last := p.bounds()
	return int32(last-first+1) - int32(len(p.used))
}

// contains reports whether addr is assignable in this subnet, i.e. inside
// the prefix and not one of the reserved addresses.
func (p *addressPool) contains(addr netip.Addr) bool {
	if !addr.Is4() || !p.prefix.Contains(addr) {
		return false
	}
	first, last := p.bounds()
	n := addrToUint32(addr)
	return n >= first && n <= last
}

// allocate assigns the lowest free address to owner.
func (p *addressPool) allocate(owner string) (netip.Addr, error) {
	first, last := p.bounds()
	for n := first; n <= last; n++ {
		addr := uint32ToAddr(n)
		if _, taken := p.used[addr]; !taken {
			p.used[addr] = owner
			return addr, nil
		}
	}
	return netip.Addr{}, clientError(CodeInsufficientAddresses,
		"There are not enough free addresses in subnet '%s' to satisfy the requested number of instances.", p.prefix)
}

// reserve assigns a specific address to owner.
func (p *addressPool) reserve(addr netip.Addr, owner string) error {
	if !p.contains(addr) {
		return clientError(CodeInvalidParameterValue,
			"Address %s does not fall within the subnet's address range", addr)
	}
	if _, taken := p.used[addr]; taken {
		return clientError(CodeAddressInUse, "The specified address %s is already in use.", addr)
	}
	p.used[addr] = owner
	return nil
}

func (p *addressPool) release(addr netip.Addr) {
	delete(p.used, addr)
}

func addrToUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func uint32ToAddr(n uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return netip.AddrFrom4(b)
}
