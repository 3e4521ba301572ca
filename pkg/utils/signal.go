// Copyright 2018-2019 The logrange Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package utils

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// NewSignalCtx returns the context which is cancelled when the process
// receives SIGINT or SIGTERM. onSignal, if not nil, is called before the
// cancellation. The notification is dropped when the context is cancelled by
// any other reason.
func NewSignalCtx(onSignal func(s os.Signal)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case s := <-sigChan:
			if onSignal != nil {
				onSignal(s)
			}
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
