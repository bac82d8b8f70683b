// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Command btrfs-pathwalk reads an unmounted, single-device btrfs
// image and prints the absolute path of every regular file it finds
// in the default filesystem tree.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfsutil"
)

func main() {
	argparser := &cobra.Command{
		Use:   "btrfs-pathwalk IMAGE",
		Short: "Print the path of every regular file in a btrfs image",

		Args: cobra.ExactArgs(1),

		SilenceErrors: true, // main() handles the error after Execute() returns
		SilenceUsage:  true,

		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)

	argparser.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := logrus.New()
		ctx = dlog.WithLogger(ctx, dlog.WrapLogrus(logger))

		grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
			EnableSignalHandling: true,
		})
		grp.Go("main", func(ctx context.Context) error {
			return run(ctx, args[0])
		})
		return grp.Wait()
	}

	if err := argparser.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}

func run(ctx context.Context, imgPath string) error {
	walker, err := btrfsutil.OpenPathWalker(ctx, imgPath)
	if err != nil {
		return err
	}

	dlog.Infof(ctx, "walking %s", imgPath)

	stdout := bufio.NewWriter(os.Stdout)
	defer stdout.Flush()

	return walker.WalkFiles(func(absPath string) error {
		_, err := fmt.Fprintf(stdout, "filename=%s\n", absPath)
		return err
	})
}
