// Package validator 提供扫描目标（URL/主机名/IP）的输入校验
//
// 调用方在把 host 交给限速控制器之前先过这里；核心组件信任
// 已通过校验的 host 字符串。
package validator

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	// ErrInvalidURL URL 格式非法
	ErrInvalidURL = errors.New("validator: invalid url")

	// ErrInvalidHost 主机名非法
	ErrInvalidHost = errors.New("validator: invalid host")

	// ErrPrivateAddress 目标解析为私有地址且未放行
	ErrPrivateAddress = errors.New("validator: private address not allowed")

	// ErrLoopbackAddress 目标为本机地址且未放行
	ErrLoopbackAddress = errors.New("validator: loopback address not allowed")
)

// 域名段: 字母数字开头结尾，中间可带连字符，TLD 至少 2 个字母
var hostnamePattern = regexp.MustCompile(
	`^(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)

// TargetValidator 扫描目标校验器
type TargetValidator struct {
	// AllowPrivate 放行私有网段目标（10/8, 172.16/12, 192.168/16 等）
	AllowPrivate bool

	// AllowLoopback 放行 localhost / 127.0.0.0/8 / ::1
	AllowLoopback bool
}

// NewTargetValidator 创建默认校验器（私有和本机地址都拒绝）
func NewTargetValidator() *TargetValidator {
	return &TargetValidator{}
}

// ValidateURL checks scheme, host and path of a target URL.
func (v *TargetValidator) ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)

	err := validation.Validate(raw,
		validation.Required,
		validation.By(func(value interface{}) error {
			u, parseErr := url.Parse(value.(string))
			if parseErr != nil {
				return fmt.Errorf("%w: %v", ErrInvalidURL, parseErr)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
			}
			if u.Hostname() == "" {
				return fmt.Errorf("%w: missing host", ErrInvalidURL)
			}
			if hasDangerousPath(u.Path) {
				return fmt.Errorf("%w: dangerous characters in path", ErrInvalidURL)
			}
			return v.ValidateHost(u.Hostname())
		}),
	)
	if err != nil {
		if isOursError(err) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	return nil
}

// ValidateHost checks a bare hostname or IP literal against the
// address policy.
func (v *TargetValidator) ValidateHost(host string) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return fmt.Errorf("%w: empty", ErrInvalidHost)
	}

	if ip := net.ParseIP(host); ip != nil {
		return v.checkIPPolicy(ip)
	}

	if strings.EqualFold(host, "localhost") {
		if !v.AllowLoopback {
			return ErrLoopbackAddress
		}
		return nil
	}

	if !hostnamePattern.MatchString(host) {
		return fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}
	return nil
}

// NormalizeHost extracts the rate-limiter scope key from a target:
// a URL yields its hostname, anything else is treated as host[:port].
func NormalizeHost(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidHost)
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
		}
		return strings.ToLower(u.Hostname()), nil
	}

	if host, _, err := net.SplitHostPort(raw); err == nil {
		return strings.ToLower(host), nil
	}
	return strings.ToLower(raw), nil
}

// checkIPPolicy 按地址策略检查 IP
func (v *TargetValidator) checkIPPolicy(ip net.IP) error {
	if ip.IsLoopback() {
		if !v.AllowLoopback {
			return ErrLoopbackAddress
		}
		return nil
	}

	if ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
		if !v.AllowPrivate {
			return ErrPrivateAddress
		}
	}
	return nil
}

// hasDangerousPath 检查路径穿越和控制字符
func hasDangerousPath(path string) bool {
	if strings.Contains(path, "..") {
		return true
	}
	for _, c := range path {
		if c < 0x20 || c == 0x7f {
			return true
		}
	}
	return false
}

func isOursError(err error) bool {
	return errors.Is(err, ErrInvalidURL) ||
		errors.Is(err, ErrInvalidHost) ||
		errors.Is(err, ErrPrivateAddress) ||
		errors.Is(err, ErrLoopbackAddress)
}
