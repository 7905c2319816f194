// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MissiontoMars/eggroll/table"
)

var (
	flagPartitions int
	flagLimit      int
)

func openFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&flagPartitions, "partitions", 1, "partition count to request if the table does not yet exist")
}

func openTable(name, namespace string) (*table.Table, error) {
	useSerialize := false
	return table.Open(eng, table.OpenOptions{
		Name: name, Namespace: namespace, Partitions: flagPartitions,
		Persistent: true, UseSerialize: &useSerialize,
	})
}

func newPutCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "put <name> <namespace> <key> <value>",
		Short: "Write one entry into a table, creating it if necessary",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := openTable(args[0], args[1])
			if err != nil {
				return err
			}
			return tbl.Put(args[2], args[3])
		},
	}
	openFlags(c)
	return c
}

func newGetCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "get <name> <namespace> <key>",
		Short: "Read one entry from a table",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := openTable(args[0], args[1])
			if err != nil {
				return err
			}
			v, found, err := tbl.Get(args[2])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("key %q not found", args[2])
			}
			fmt.Println(v)
			return nil
		},
	}
	openFlags(c)
	return c
}

func newDeleteCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "delete <name> <namespace> <key>",
		Short: "Delete one entry from a table",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := openTable(args[0], args[1])
			if err != nil {
				return err
			}
			_, existed, err := tbl.Delete(args[2])
			if err != nil {
				return err
			}
			if !existed {
				return fmt.Errorf("key %q not found", args[2])
			}
			return nil
		},
	}
	openFlags(c)
	return c
}

func newCountCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "count <name> <namespace>",
		Short: "Print the total number of entries across every partition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := openTable(args[0], args[1])
			if err != nil {
				return err
			}
			n, err := tbl.Count()
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		},
	}
	openFlags(c)
	return c
}

func newCollectCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "collect <name> <namespace>",
		Short: "Print every entry in global sort order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := openTable(args[0], args[1])
			if err != nil {
				return err
			}
			it, err := tbl.Collect()
			if err != nil {
				return err
			}
			defer it.Close()

			printed := 0
			for flagLimit <= 0 || printed < flagLimit {
				k, val, ok, err := it.Next()
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				fmt.Printf("%v\t%v\n", k, val)
				printed++
			}
			return nil
		},
	}
	openFlags(c)
	c.Flags().IntVar(&flagLimit, "limit", 0, "stop after this many entries (0 = unlimited)")
	return c
}

func newDestroyCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "destroy <name> <namespace>",
		Short: "Drop every partition of a table and forget its meta entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := openTable(args[0], args[1])
			if err != nil {
				return err
			}
			return tbl.Destroy()
		},
	}
	openFlags(c)
	return c
}
