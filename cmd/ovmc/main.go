/*
 * Ovum VM - A virtual machine for the Osprey language
 * Copyright (c) 2026 by the Ovum authors. All rights reserved.
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Command ovmc is a thin command-line front end over the loader and
// initializer packages: one root command, one subcommand per
// operation, flags bound with pflag.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/osprey-lang/ovum/globals"
	"github.com/osprey-lang/ovum/initializer"
	"github.com/osprey-lang/ovum/loader"
	"github.com/osprey-lang/ovum/modpool"
	"github.com/osprey-lang/ovum/objmodel"
	"github.com/osprey-lang/ovum/ovmtrace"
	"github.com/osprey-lang/ovum/refsig"
	"github.com/osprey-lang/ovum/shutdown"
)

var verbose bool

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&verbose, "verbose", "v", false, "enable trace-level diagnostics")
}

func newLoader() (*loader.Loader, *refsig.Pool) {
	g := globals.GetGlobalRef()
	pool := refsig.NewPool()
	return loader.New(loader.Options{
		Pool:     modpool.NewPool(),
		Finder:   modpool.NewFinder(g.StartupDir, g.ModulePath),
		Strings:  objmodel.NewStringPool(),
		RefSigs:  pool,
		Standard: objmodel.NewStandardTypes(),
	}), pool
}

func runLoad(cmd *cobra.Command, args []string) {
	ld, _ := newLoader()
	mod, err := ld.OpenFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ovmc: load %s: %v\n", args[0], err)
		shutdown.Exit(shutdown.VMException)
	}
	fmt.Printf("%s %s: %d types, %d methods, %d functions, %d fields, %d constants\n",
		mod.Name, mod.Version, len(mod.Types), len(mod.Methods), len(mod.Functions), len(mod.Fields), len(mod.Constants))
}

func runDump(cmd *cobra.Command, args []string) {
	ld, _ := newLoader()
	mod, err := ld.OpenFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ovmc: dump %s: %v\n", args[0], err)
		shutdown.Exit(shutdown.VMException)
	}
	for _, ty := range mod.Types {
		base := "<none>"
		if ty.BaseType != nil {
			base = ty.BaseType.FullName
		}
		fmt.Printf("type %s (base %s, size %d)\n", ty.FullName, base, ty.Size)
		for name, member := range ty.Members {
			switch m := member.(type) {
			case *objmodel.Method:
				fmt.Printf("  method %s (%d overload(s))\n", name, len(m.Overloads))
			case *objmodel.Field:
				fmt.Printf("  field %s\n", name)
			case *objmodel.Property:
				fmt.Printf("  property %s\n", name)
			}
		}
	}
}

func runDisasm(cmd *cobra.Command, args []string) {
	ld, refsigs := newLoader()
	mod, err := ld.OpenFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ovmc: disasm %s: %v\n", args[0], err)
		shutdown.Exit(shutdown.VMException)
	}

	methodName := args[1]
	var target *objmodel.Method
	for _, m := range mod.Methods {
		if m.Name == methodName {
			target = m
			break
		}
	}
	if target == nil {
		for _, m := range mod.Functions {
			if m.Name == methodName {
				target = m
				break
			}
		}
	}
	if target == nil {
		fmt.Fprintf(os.Stderr, "ovmc: disasm: no method named %q\n", methodName)
		shutdown.Exit(shutdown.UsageError)
	}

	for i, ov := range target.Overloads {
		if ov.IsNative() || ov.IsAbstract() {
			fmt.Printf("overload %d: native/abstract, nothing to disassemble\n", i)
			continue
		}
		pending, err := initializer.Initialize(mod, refsigs, methodName, ov)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ovmc: disasm: overload %d: %v\n", i, err)
			shutdown.Exit(shutdown.VMException)
		}
		fmt.Printf("overload %d: %d bytes rewritten, %d pending static ctor(s)\n", i, len(ov.Body), len(pending))
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "ovmc",
		Short: "ovum module loader/initializer command-line front end",
	}
	addGlobalFlags(rootCmd.PersistentFlags())
	cobra.OnInitialize(func() {
		if verbose {
			ovmtrace.Enable(ovmtrace.LevelTrace)
			ovmtrace.Enable(ovmtrace.LevelInfo)
		}
	})

	loadCmd := &cobra.Command{
		Use:   "load <module>",
		Short: "Load a module and report diagnostics",
		Args:  cobra.ExactArgs(1),
		Run:   runLoad,
	}
	dumpCmd := &cobra.Command{
		Use:   "dump <module>",
		Short: "Dump the linked type/method graph",
		Args:  cobra.ExactArgs(1),
		Run:   runDump,
	}
	disasmCmd := &cobra.Command{
		Use:   "disasm <module> <method>",
		Short: "Run the initializer and report each overload's rewritten body size",
		Args:  cobra.ExactArgs(2),
		Run:   runDisasm,
	}

	rootCmd.AddCommand(loadCmd, dumpCmd, disasmCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		shutdown.Exit(shutdown.UsageError)
	}
}
