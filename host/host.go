// Package host implements the netmon environment capabilities for the
// machine netmon runs on.
//
// Reachability comes from the interface list reported by gopsutil. The
// connection descriptor describes the primary interface, which is the
// physical interface that received the most bytes according to
// /proc/net/dev. Its link type and rate come from /sys/class/net.
package host

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/procfs"
	"github.com/prometheus/procfs/sysfs"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/m-lab/netmon/logging"
	"github.com/m-lab/netmon/model"
)

// Link type strings reported in the descriptor. They follow the vocabulary
// of the classifier.
const (
	LinkEthernet = "ethernet"
	LinkWiFi     = "wifi"
	LinkCellular = "cellular"
	LinkOther    = "other"
)

// arphrdEther is the ARPHRD_ETHER link type in /sys/class/net/*/type.
const arphrdEther = 1

// DefaultWatchInterval is the period at which change notifications are
// detected.
const DefaultWatchInterval = 2 * time.Second

var errNoPrimary = errors.New("host: no primary interface")

// Environment reads the network state of the local machine. The zero value
// is not usable; create it with New.
type Environment struct {
	// ProcPath and SysPath are the procfs and sysfs mount points.
	ProcPath string
	SysPath  string

	// Interfaces lists the network interfaces.
	Interfaces func() (gnet.InterfaceStatList, error)

	// WatchInterval is the period of the change watcher.
	WatchInterval time.Duration

	// SaveData is the reduced data usage preference reported in the
	// descriptor. Nil leaves it absent.
	SaveData *bool

	mu           sync.Mutex
	nextID       int
	connectivity map[int]func(bool)
	connection   map[int]func()
	watcher      *watcher
}

// New creates an Environment reading the standard mount points.
func New() *Environment {
	return &Environment{
		ProcPath:      procfs.DefaultMountPoint,
		SysPath:       sysfs.DefaultMountPoint,
		Interfaces:    gnet.Interfaces,
		WatchInterval: DefaultWatchInterval,
		connectivity:  make(map[int]func(bool)),
		connection:    make(map[int]func()),
	}
}

// Online reports whether any non-loopback interface is up with a routable
// address. Failing to list the interfaces reports online.
func (e *Environment) Online() bool {
	ifaces, err := e.Interfaces()
	if err != nil {
		logging.Logger.WithError(err).Warn("host: cannot list interfaces")
		return true
	}
	for _, iface := range ifaces {
		if !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") {
			continue
		}
		for _, a := range iface.Addrs {
			if routable(a.Addr) {
				return true
			}
		}
	}
	return false
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

// routable reports whether addr, in CIDR or plain form, is neither a
// loopback nor a link-local address.
func routable(addr string) bool {
	ip, _, err := net.ParseCIDR(addr)
	if err != nil {
		ip = net.ParseIP(addr)
	}
	if ip == nil {
		return false
	}
	return !ip.IsLoopback() && !ip.IsLinkLocalUnicast() && !ip.IsUnspecified()
}

// Connection describes the primary interface. It reports no descriptor when
// no physical interface is up.
func (e *Environment) Connection() (model.Descriptor, bool) {
	iface, err := e.primary()
	if err != nil {
		logging.Logger.WithError(err).Debug("host: no connection descriptor")
		return model.Descriptor{}, false
	}
	d := model.Descriptor{Type: model.String(e.linkType(iface))}
	if iface.Speed != nil && *iface.Speed > 0 {
		d.Downlink = model.Float(float64(*iface.Speed))
	}
	if e.SaveData != nil {
		d.SaveData = model.Bool(*e.SaveData)
	}
	return d, true
}

// primary returns the physical, operational interface with the most
// received bytes.
func (e *Environment) primary() (sysfs.NetClassIface, error) {
	pfs, err := procfs.NewFS(e.ProcPath)
	if err != nil {
		return sysfs.NetClassIface{}, err
	}
	dev, err := pfs.NetDev()
	if err != nil {
		return sysfs.NetClassIface{}, err
	}
	sfs, err := sysfs.NewFS(e.SysPath)
	if err != nil {
		return sysfs.NetClassIface{}, err
	}
	class, err := sfs.NetClass()
	if err != nil {
		return sysfs.NetClassIface{}, err
	}
	var (
		best  sysfs.NetClassIface
		rx    uint64
		found bool
	)
	for name, line := range dev {
		iface, ok := class[name]
		if !ok || name == "lo" || e.virtual(name) || !operational(iface.OperState) {
			continue
		}
		// Ties are broken by name so the choice is stable.
		if !found || line.RxBytes > rx || (line.RxBytes == rx && name < best.Name) {
			best, rx, found = iface, line.RxBytes, true
		}
	}
	if !found {
		return sysfs.NetClassIface{}, errNoPrimary
	}
	return best, nil
}

func operational(state string) bool {
	return state == "up" || state == "unknown"
}

// virtual reports whether the kernel registered name as a virtual device
// (bridges, veth pairs, tunnels).
func (e *Environment) virtual(name string) bool {
	_, err := os.Stat(filepath.Join(e.SysPath, "devices", "virtual", "net", name))
	return err == nil
}

// linkType classifies the interface from its sysfs entries.
func (e *Environment) linkType(iface sysfs.NetClassIface) string {
	dir := filepath.Join(e.SysPath, "class", "net", iface.Name)
	devtype := ueventDevType(filepath.Join(dir, "uevent"))
	if _, err := os.Stat(filepath.Join(dir, "wireless")); err == nil || devtype == "wlan" {
		return LinkWiFi
	}
	if devtype == "wwan" || strings.HasPrefix(iface.Name, "wwan") || strings.HasPrefix(iface.Name, "rmnet") {
		return LinkCellular
	}
	if iface.Type != nil && *iface.Type == arphrdEther {
		return LinkEthernet
	}
	return LinkOther
}

// ueventDevType returns the DEVTYPE entry of a sysfs uevent file, or the
// empty string.
func ueventDevType(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(b), "\n") {
		if v, ok := strings.CutPrefix(line, "DEVTYPE="); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// String describes the environment for logs.
func (e *Environment) String() string {
	return fmt.Sprintf("host(proc=%s, sys=%s)", e.ProcPath, e.SysPath)
}
