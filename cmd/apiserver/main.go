/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package main

import (
	"fmt"

	"github.com/ccieblogger/netraven-sub003/pkg/apiserver"
)

func main() {
	s, err := apiserver.NewServer()
	if err != nil {
		fmt.Println("failed to new server")
		return
	}
	s.Start()
}
