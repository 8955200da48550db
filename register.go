// Package qr registers the k6/x/qr extension.
package qr

import (
	"go.k6.io/k6/js/modules"

	"github.com/oshokin/xk6-qr/qr"
)

// init registers the qr module with the k6 runtime.
func init() {
	modules.Register("k6/x/qr", qr.New())
}
