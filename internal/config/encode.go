// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclwrite"

	nerrors "nat64.dev/core/internal/errors"
)

// encodeHCL renders cfg back to HCL source. gohcl.EncodeIntoBody is
// sufficient here (unlike the teacher's hcl_serializer.go, which exists
// because that config has interface-typed and deeply nested optional
// blocks this one does not).
func encodeHCL(cfg *Config) ([]byte, error) {
	f := hclwrite.NewEmptyFile()
	gohcl.EncodeIntoBody(cfg, f.Body())
	out := f.Bytes()
	if len(out) == 0 {
		return nil, nerrors.New(nerrors.KindInternal, "config: hcl encode produced no output")
	}
	return out, nil
}
