package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LocalhostOnly only lets localhost and whitelisted IPs through
type LocalhostOnly struct {
	logger  *logrus.Logger
	ips     []net.IP
	subnets []*net.IPNet
}

// NewLocalhostOnly allowedIPs holds exact IPs or CIDR ranges. Invalid entries
// are logged and ignored.
func NewLocalhostOnly(logger *logrus.Logger, allowedIPs []string) *LocalhostOnly {
	l := &LocalhostOnly{logger: logger}
	for _, entry := range allowedIPs {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				logger.WithField("allowed", entry).WithError(err).Warn("Invalid CIDR in allowedIPs")
				continue
			}
			l.subnets = append(l.subnets, ipNet)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			logger.WithField("allowed", entry).Warn("Invalid IP in allowedIPs")
			continue
		}
		l.ips = append(l.ips, ip)
	}
	return l
}

// Restrict rejects requests from non-whitelisted client IPs
func (l *LocalhostOnly) Restrict() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if l.isAllowedIP(clientIP) {
			c.Next()
			return
		}

		l.logger.WithFields(logrus.Fields{
			"client_ip":  clientIP,
			"path":       c.Request.URL.Path,
			"method":     c.Request.Method,
			"user_agent": c.GetHeader("User-Agent"),
		}).Warn("🚫 Reject non-whitelisted access to admin API")

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "This API is only accessible from allowed IP addresses",
			"code":    "IP_NOT_ALLOWED",
		})
	}
}

func (l *LocalhostOnly) isAllowedIP(raw string) bool {
	ip := net.ParseIP(raw)
	if ip == nil {
		return false
	}
	if ip.IsLoopback() {
		return true
	}
	for _, allowed := range l.ips {
		if allowed.Equal(ip) {
			return true
		}
	}
	for _, subnet := range l.subnets {
		if subnet.Contains(ip) {
			return true
		}
	}
	return false
}
