package api

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dutchcoders/go-clamd"
)

var ErrInfected = errors.New("malicious file detected")

// Scanner 在上传内容落盘前做病毒扫描。
type Scanner interface {
	Scan(r io.Reader) error
}

// ClamdScanner 通过 clamd 的 INSTREAM 扫描。
type ClamdScanner struct {
	addr string
}

// NewScanner 在未配置 clamd 地址时返回一个放行所有内容的扫描器。
func NewScanner(addr string) Scanner {
	if strings.TrimSpace(addr) == "" {
		return noopScanner{}
	}
	return &ClamdScanner{addr: addr}
}

func (s *ClamdScanner) Scan(r io.Reader) error {
	client := clamd.NewClamd(s.addr)
	abort := make(chan bool)
	defer close(abort)

	results, err := client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("clamd scan stream: %w", err)
	}
	for result := range results {
		switch result.Status {
		case clamd.RES_OK:
		case clamd.RES_FOUND:
			return fmt.Errorf("%w: %s", ErrInfected, result.Description)
		default:
			return fmt.Errorf("clamd scan: %s", strings.TrimSpace(result.Raw))
		}
	}
	return nil
}

type noopScanner struct{}

func (noopScanner) Scan(io.Reader) error { return nil }
