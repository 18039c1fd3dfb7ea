package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	applog "budget/internal/log"
)

var (
	suspiciousFragments = []string{
		"../", "..\\", ".env", ".git", "wp-admin", "phpmyadmin",
		"etc/passwd", "<script", "union select", "cmd.exe",
	}
	scannerAgents = []string{"sqlmap", "nikto", "nmap", "gobuster", "dirbuster", "masscan"}
)

// DetectionMetrics counts flagged requests.
type DetectionMetrics struct {
	SuspiciousRequests int64
}

// Detector resolves client addresses and flags obvious probing.
type Detector struct {
	trustedProxies []*net.IPNet
	suspicious     atomic.Int64
}

// NewDetector trusts loopback plus any extra CIDRs or bare IPs given.
func NewDetector(trusted ...string) (*Detector, error) {
	d := &Detector{}
	for _, cidr := range append([]string{"127.0.0.0/8", "::1/128"}, trusted...) {
		if err := d.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// AddTrustedProxy accepts "10.0.0.0/8" or a single address.
func (d *Detector) AddTrustedProxy(cidr string) error {
	cidr = strings.TrimSpace(cidr)
	if cidr == "" {
		return nil
	}
	if !strings.Contains(cidr, "/") {
		ip := net.ParseIP(cidr)
		if ip == nil {
			return fmt.Errorf("invalid trusted proxy %q", cidr)
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		cidr = fmt.Sprintf("%s/%d", cidr, bits)
	}
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid trusted proxy %q: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, n := range d.trustedProxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ExtractClientIP returns the peer address or, when the peer is a trusted
// proxy, the rightmost forwarded address that is not a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	direct, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		direct = r.RemoteAddr
	}
	peer := net.ParseIP(direct)
	if peer == nil || !d.isTrustedProxy(peer) {
		return direct
	}

	// Hops left of the nearest untrusted one are client-controlled.
	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			ip := net.ParseIP(hop)
			if ip == nil {
				break
			}
			if !d.isTrustedProxy(ip) {
				return hop
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return direct
}

// IsSuspicious reports whether the request looks like a scanner probe.
func (d *Detector) IsSuspicious(r *http.Request) bool {
	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	flagged := false
	for _, f := range suspiciousFragments {
		if strings.Contains(target, f) {
			flagged = true
			break
		}
	}
	if !flagged {
		ua := strings.ToLower(r.UserAgent())
		for _, a := range scannerAgents {
			if strings.Contains(ua, a) {
				flagged = true
				break
			}
		}
	}
	if !flagged && (r.Method == http.MethodTrace || r.Method == "TRACK") {
		flagged = true
	}
	if !flagged && len(r.URL.String()) > 2048 {
		flagged = true
	}
	if flagged {
		d.suspicious.Add(1)
	}
	return flagged
}

// Middleware logs suspicious requests. It never blocks them.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.IsSuspicious(r) {
			fields := applog.NewFields().
				WithComponent(applog.ComponentSecurity).
				WithClientIP(d.ExtractClientIP(r)).
				WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent())
			applog.FromContext(r.Context()).Warn("suspicious request", fields.ToSlice()...)
		}
		next.ServeHTTP(w, r)
	})
}

func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{SuspiciousRequests: d.suspicious.Load()}
}
