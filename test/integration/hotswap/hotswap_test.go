// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package hotswap_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/hotswap/internal/config"
	"github.com/holomush/hotswap/internal/host"
	"github.com/holomush/hotswap/internal/plugin"
	pluginlua "github.com/holomush/hotswap/internal/plugin/lua"
	"github.com/holomush/hotswap/pkg/hotswap"
)

// calcSource is the shipped Lua calc plugin.
var calcSource = filepath.Join("..", "..", "..", "plugins", "calc", "calc.lua")

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// install copies the shipped calc plugin into dir, optionally rewriting its
// formula, and pins the modification time.
func install(dir, formula string, mtime time.Time) {
	data, err := os.ReadFile(calcSource)
	Expect(err).NotTo(HaveOccurred())
	code := string(data)
	if formula != "" {
		code = strings.Replace(code, "a + b * 18", formula, 1)
	}
	path := filepath.Join(dir, "calc.lua")
	Expect(os.WriteFile(path, []byte(code), 0o600)).To(Succeed())
	Expect(os.Chtimes(path, mtime, mtime)).To(Succeed())
}

func add(ref hotswap.Reference, a, b int) float64 {
	iface, ok := hotswap.As[*pluginlua.Interface](ref)
	Expect(ok).To(BeTrue())
	out, err := iface.Call("add", a, b)
	Expect(err).NotTo(HaveOccurred())
	Expect(out).To(HaveLen(1))
	return out[0].(float64)
}

var _ = Describe("Registry with the Lua runtime", func() {
	var (
		ctx  context.Context
		dir  string
		base time.Time
		reg  *plugin.Registry
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		base = time.Now().Add(-time.Hour).Truncate(time.Second)

		loader := plugin.NewLoader(pluginlua.NewOpener(pluginlua.WithLogger(discard())),
			plugin.WithLoaderLogger(discard()))
		reg = plugin.NewRegistry(loader, plugin.WithLogger(discard()))
	})

	AfterEach(func() {
		Expect(reg.Close(ctx)).To(Succeed())
	})

	Describe("the calc scenario", func() {
		It("patches a held reference when the module file is rewritten", func() {
			install(dir, "", base)
			Expect(reg.RequestLoad(ctx, dir, "calc")).To(Succeed())

			ref, err := reg.Lookup("calc")
			Expect(err).NotTo(HaveOccurred())
			Expect(add(ref, 100, 200)).To(Equal(float64(3700)))

			install(dir, "(a + b) * 6", base.Add(time.Second))
			Expect(reg.CheckAll(ctx)).To(Equal(1))

			Expect(add(ref, 100, 200)).To(Equal(float64(1800)))
		})

		It("keeps the host's data block across a reload", func() {
			install(dir, "", base)
			Expect(reg.RequestLoad(ctx, dir, "calc")).To(Succeed())
			ref, err := reg.Lookup("calc")
			Expect(err).NotTo(HaveOccurred())

			data := &hotswap.Data{}
			iface, ok := hotswap.As[*pluginlua.Interface](ref)
			Expect(ok).To(BeTrue())
			_, err = iface.Call("set_value", data, 100)
			Expect(err).NotTo(HaveOccurred())

			install(dir, "(a + b) * 6", base.Add(time.Second))
			Expect(reg.CheckAll(ctx)).To(Equal(1))

			iface, ok = hotswap.As[*pluginlua.Interface](ref)
			Expect(ok).To(BeTrue())
			out, err := iface.Call("get_value", data)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal([]any{float64(100)}))
			Expect(add(ref, 100, 200)).To(Equal(float64(1800)))
		})

		It("keeps every reference in sync", func() {
			install(dir, "", base)
			Expect(reg.RequestLoad(ctx, dir, "calc")).To(Succeed())

			first, err := reg.Lookup("calc")
			Expect(err).NotTo(HaveOccurred())
			second, err := reg.Lookup("calc")
			Expect(err).NotTo(HaveOccurred())
			Expect(first).NotTo(BeIdenticalTo(second))
			Expect(first.Interface()).To(BeIdenticalTo(second.Interface()))

			install(dir, "a * b", base.Add(time.Second))
			reg.CheckAll(ctx)

			Expect(add(first, 6, 7)).To(Equal(float64(42)))
			Expect(add(second, 6, 7)).To(Equal(float64(42)))
		})
	})

	Describe("staleness", func() {
		It("ignores rewrites that do not advance the modification time", func() {
			install(dir, "", base)
			Expect(reg.RequestLoad(ctx, dir, "calc")).To(Succeed())
			ref, err := reg.Lookup("calc")
			Expect(err).NotTo(HaveOccurred())

			install(dir, "0", base)
			Expect(reg.CheckAll(ctx)).To(BeZero())
			Expect(add(ref, 100, 200)).To(Equal(float64(3700)))

			install(dir, "0", base.Add(-time.Minute))
			Expect(reg.CheckAll(ctx)).To(BeZero())
		})

		It("treats a deleted module file as not stale", func() {
			install(dir, "", base)
			Expect(reg.RequestLoad(ctx, dir, "calc")).To(Succeed())

			Expect(os.Remove(filepath.Join(dir, "calc.lua"))).To(Succeed())
			Expect(reg.CheckAll(ctx)).To(BeZero())
			Expect(reg.Ready()).To(BeTrue())
		})
	})

	Describe("failures", func() {
		It("reports a missing path and leaves no module behind", func() {
			err := reg.RequestLoad(ctx, filepath.Join(dir, "nowhere"), "calc")
			Expect(plugin.HasCode(err, plugin.CodeModuleOpen)).To(BeTrue())

			status := reg.Status()
			Expect(status).To(HaveLen(1))
			Expect(status[0].HasModule).To(BeFalse())
			Expect(status[0].State).To(Equal(plugin.StateUnloaded))
		})

		It("returns not found for unknown plugins", func() {
			_, err := reg.Lookup("unregistered")
			Expect(plugin.HasCode(err, plugin.CodePluginNotFound)).To(BeTrue())
		})

		It("keeps the last interface value when a rebuild is broken", func() {
			install(dir, "", base)
			Expect(reg.RequestLoad(ctx, dir, "calc")).To(Succeed())
			ref, err := reg.Lookup("calc")
			Expect(err).NotTo(HaveOccurred())
			before := ref.Interface()

			path := filepath.Join(dir, "calc.lua")
			Expect(os.WriteFile(path, []byte("function load_calc("), 0o600)).To(Succeed())
			Expect(os.Chtimes(path, base.Add(time.Second), base.Add(time.Second))).To(Succeed())
			Expect(reg.CheckAll(ctx)).To(Equal(1))

			Expect(ref.Interface()).To(BeIdenticalTo(before))
			Expect(reg.Ready()).To(BeFalse())

			install(dir, "a - b", base.Add(2*time.Second))
			Expect(reg.CheckAll(ctx)).To(Equal(1))
			Expect(add(ref, 5, 3)).To(Equal(float64(2)))
		})
	})
})

var _ = Describe("Host with file watching", func() {
	It("swaps the module after a write without waiting for the poll interval", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dir := GinkgoT().TempDir()
		install(dir, "", time.Now().Add(-time.Hour).Truncate(time.Second))

		h, err := host.New(&config.Config{
			LogFormat:    "json",
			LogLevel:     "info",
			PollInterval: time.Hour,
			Runtime:      config.RuntimeLua,
			Watch:        true,
			Dir:          dir,
			Plugins:      []config.PluginSource{{Name: "calc"}},
		}, host.WithLogger(discard()), host.WithWatchDebounce(20*time.Millisecond))
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = h.Close(context.Background()) }()
		Expect(h.Start(ctx)).To(Succeed())

		ref, err := h.Registry().Lookup("calc")
		Expect(err).NotTo(HaveOccurred())

		done := make(chan error, 1)
		go func() { done <- h.Run(ctx) }()

		Eventually(func() float64 {
			install(dir, "(a + b) * 6", time.Now())
			iface, _ := hotswap.As[*pluginlua.Interface](ref)
			out, err := iface.Call("add", 100, 200)
			if err != nil || len(out) != 1 {
				return 0
			}
			v, _ := out[0].(float64)
			return v
		}).WithTimeout(5 * time.Second).WithPolling(100 * time.Millisecond).Should(Equal(float64(1800)))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})
})
