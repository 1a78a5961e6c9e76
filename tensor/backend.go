// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/samediff/internal/ops"

// Backend is the kernel set graph ops dispatch to.
//
// Implementations:
//   - backend/cpu: Pure Go
//
// Kernels return new tensors and never modify their inputs.
type Backend = ops.Backend
