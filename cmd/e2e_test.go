// Copyright © 2024 The ELPS authors

package cmd_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/luthersystems/watsum/cmd"
	"github.com/luthersystems/watsum/report"
	"github.com/luthersystems/watsum/summarize"
	"github.com/luthersystems/watsum/watsumtest"
	"github.com/spf13/viper"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gstruct"
)

var _ = Describe("watsum summarize", func() {
	var (
		dir    string
		stdOut *bytes.Buffer
		stdErr *bytes.Buffer
	)

	execute := func(args ...string) error {
		root := cmd.NewRootCommand(cmd.WithStdout(stdOut), cmd.WithStderr(stdErr))
		root.SetArgs(args)
		return root.Execute()
	}

	BeforeEach(func() {
		viper.Reset()
		dir = GinkgoTB().TempDir()
		GinkgoTB().Setenv("HOME", dir)
		stdOut = bytes.NewBuffer(nil)
		stdErr = bytes.NewBuffer(nil)
		DeferCleanup(func() { summarize.SetLogger(nil) })
	})

	It("lists every function of a generated module", func() {
		in := watsumtest.Module{Funcs: 30, FlagEvery: 10}.WriteFile(GinkgoTB(), dir, "app.wat")
		Expect(execute("summarize", in)).To(Succeed())

		out := stdOut.String()
		Expect(out).To(HavePrefix("WebAssembly Function Summary\n===========================\n\nTotal functions analyzed: 30\n"))
		Expect(out).To(ContainSubstring("(func $f0)  // Size: 8 lines, Loads: 1, Stores: 1, Branches: 1, Calls: 3, WebGL: ['texImage2D']...\n"))
		Expect(out).To(ContainSubstring("(func $f1)  // Size: 8 lines, Loads: 1, Stores: 1, Branches: 1, Calls: 1\n"))
		Expect(out).NotTo(ContainSubstring("fake"))
		Expect(out).NotTo(ContainSubstring("ghost"))
		Expect(stdErr.String()).To(BeEmpty())
	})

	It("writes filtered JSON", func() {
		in := watsumtest.Module{Funcs: 9, FlagEvery: 3}.WriteFile(GinkgoTB(), dir, "app.wat")
		out := filepath.Join(dir, "app.json")
		Expect(execute("summarize", "--format", "json", "--filter", "flagged>0", "-o", out, in)).To(Succeed())

		b, err := os.ReadFile(out)
		Expect(err).NotTo(HaveOccurred())
		var doc struct {
			Source              string         `json:"source"`
			TotalFunctionsFound int            `json:"total_functions_found"`
			Truncated           bool           `json:"truncated"`
			Excluded            int            `json:"excluded"`
			Filter              string         `json:"filter"`
			Entries             []report.Entry `json:"entries"`
		}
		Expect(json.Unmarshal(b, &doc)).To(Succeed())
		Expect(doc.Source).To(Equal(in))
		Expect(doc.TotalFunctionsFound).To(Equal(9))
		Expect(doc.Truncated).To(BeFalse())
		Expect(doc.Excluded).To(Equal(6))
		Expect(doc.Filter).To(Equal("flagged>0"))
		Expect(doc.Entries).To(HaveLen(3))
		Expect(doc.Entries).To(ContainElement(MatchFields(IgnoreExtras, Fields{
			"Name":      Equal("$f3"),
			"Index":     Equal(3),
			"StartLine": Equal(4 + 3*watsumtest.FuncLines),
			"EndLine":   Equal(3 + 4*watsumtest.FuncLines),
			"Metrics": MatchFields(IgnoreExtras, Fields{
				"Loads":        Equal(1),
				"Calls":        Equal(3),
				"FlaggedCalls": Equal([]string{"texImage2D"}),
				"IsImport":     BeFalse(),
			}),
		})))
		Expect(doc.Entries).NotTo(ContainElement(MatchFields(IgnoreExtras, Fields{
			"Name": Equal("$f1"),
		})))
	})

	It("writes SARIF results for flagged calls", func() {
		in := watsumtest.WriteFile(GinkgoTB(), dir, "gl.wat", []byte("(func $draw\n  (call $glDrawArrays))\n(func $imp (import \"env\" \"x\"))\n"))
		Expect(execute("summarize", "--format", "sarif", in)).To(Succeed())

		var doc struct {
			Runs []struct {
				Results []struct {
					RuleID  string `json:"ruleId"`
					Message struct {
						Text string `json:"text"`
					} `json:"message"`
				} `json:"results"`
			} `json:"runs"`
		}
		Expect(json.Unmarshal(stdOut.Bytes(), &doc)).To(Succeed())
		Expect(doc.Runs).To(HaveLen(1))
		Expect(doc.Runs[0].Results).To(ConsistOf(
			MatchFields(IgnoreExtras, Fields{
				"RuleID":  Equal("capability-call"),
				"Message": MatchFields(IgnoreExtras, Fields{"Text": ContainSubstring("glDrawArrays")}),
			}),
			MatchFields(IgnoreExtras, Fields{
				"RuleID": Equal("import-marker"),
			}),
		))
	})

	It("summarizes a directory tree into an output directory", func() {
		watsumtest.Module{Funcs: 1}.WriteFile(GinkgoTB(), dir, "wasm/one.wat")
		watsumtest.Module{Funcs: 2}.WriteFile(GinkgoTB(), dir, "wasm/lib/two.wat")
		outDir := filepath.Join(dir, "summaries")
		Expect(execute("summarize", "--format", "json", "--out-dir", outDir, filepath.Join(dir, "wasm")+"/...")).To(Succeed())

		Expect(filepath.Join(outDir, "one.summary.json")).To(BeAnExistingFile())
		Expect(filepath.Join(outDir, "two.summary.json")).To(BeAnExistingFile())
		Expect(stdOut.String()).To(BeEmpty())
	})

	It("reports damaged input and still succeeds", func() {
		in := watsumtest.WriteFile(GinkgoTB(), dir, "bad.wat", []byte("(func $a \"open\n)\n)\n"))
		Expect(execute("--color", "never", "summarize", in)).To(Succeed())
		Expect(stdOut.String()).To(ContainSubstring("Total functions analyzed: 1\n"))
		Expect(stdErr.String()).To(ContainSubstring("warning: unterminated string"))
		Expect(stdErr.String()).To(ContainSubstring("warning: unmatched close paren"))
	})

	It("rejects an invalid configuration", func() {
		in := watsumtest.WriteFile(GinkgoTB(), dir, "a.wat", []byte("(func $a)"))
		err := execute("summarize", "--max-entries", "-1", in)
		Expect(err).To(MatchError(summarize.ErrConfig))
		Expect(stdOut.String()).To(BeEmpty())
	})
})
