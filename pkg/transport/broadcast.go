package transport

import (
	"fmt"
	"net"
)

// BroadcastAddrs enumerates the IPv4 subnet broadcast addresses of all up,
// non-loopback interfaces, each with the device port. Discovery packets
// are sent to every returned address, so multi-homed hosts reach devices
// on all attached networks.
//
// When no eligible interface is found, the limited broadcast address
// 255.255.255.255 is returned as a fallback.
func BroadcastAddrs() ([]*net.UDPAddr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("enumerating interfaces: %w", err)
	}

	seen := make(map[string]bool)
	var addrs []*net.UDPAddr
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		ifaceAddrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range ifaceAddrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			bcast := subnetBroadcast(ipnet)
			if bcast == nil || seen[bcast.String()] {
				continue
			}
			seen[bcast.String()] = true
			addrs = append(addrs, &net.UDPAddr{IP: bcast, Port: DevicePort})
		}
	}

	if len(addrs) == 0 {
		addrs = append(addrs, &net.UDPAddr{IP: net.IPv4bcast, Port: DevicePort})
	}
	return addrs, nil
}

// subnetBroadcast computes the directed broadcast address of an IPv4
// network, or nil for non-IPv4 networks.
func subnetBroadcast(ipnet *net.IPNet) net.IP {
	ip4 := ipnet.IP.To4()
	if ip4 == nil {
		return nil
	}
	mask := ipnet.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return nil
	}

	bcast := make(net.IP, net.IPv4len)
	for i := range bcast {
		bcast[i] = ip4[i] | ^mask[i]
	}
	return bcast
}
