package loader_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mcsim/emu"
	"github.com/sarchlab/mcsim/loader"
	"github.com/sarchlab/mcsim/sched"
)

func TestLoader(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Loader Suite")
}

const program = `; counter
ADD R1 #1

// loop body
LOOP 3
  ADD R1, R1, #2
L_END
`

var _ = Describe("Loader", func() {
	It("should strip blank lines and comments", func() {
		Expect(loader.Lines(program)).To(Equal([]string{
			"ADD R1 #1",
			"LOOP 3",
			"ADD R1, R1, #2",
			"L_END",
		}))
	})

	It("should return lines by number", func() {
		line, ok := loader.NextInstructionLine(program, 1)
		Expect(ok).To(BeTrue())
		Expect(line).To(Equal("LOOP 3"))

		_, ok = loader.NextInstructionLine(program, 4)
		Expect(ok).To(BeFalse())
		_, ok = loader.NextInstructionLine(program, -1)
		Expect(ok).To(BeFalse())
	})

	Describe("LoadProgram", func() {
		var (
			memory *emu.Memory
			m      *sched.Manager
		)

		BeforeEach(func() {
			memory = emu.NewMemory(64, 63)
			m = sched.NewManager(sched.DefaultConfig(), sched.NewRoundRobin(4))
		})

		It("should place programs one after another", func() {
			p1, err := loader.LoadProgram(memory, m, program, 8)
			Expect(err).NotTo(HaveOccurred())
			p2, err := loader.LoadProgram(memory, m, "ADD R2 #1", 8)
			Expect(err).NotTo(HaveOccurred())

			Expect(p1.Base).To(Equal(uint64(0)))
			Expect(p1.Limit).To(Equal(uint64(12)))
			Expect(p1.InstructionCount).To(Equal(4))
			Expect(p2.Base).To(Equal(uint64(12)))

			text, ok := memory.InstructionAt(p1.Base + 1)
			Expect(ok).To(BeTrue())
			Expect(text).To(Equal("LOOP 3"))
			Expect(m.Snapshot().Ready).To(Equal([]int{1, 2}))
		})

		It("should reject empty programs", func() {
			_, err := loader.LoadProgram(memory, m, "; nothing\n\n", 8)
			Expect(err).To(MatchError(loader.ErrEmptyProgram))
		})

		It("should fail when memory runs out", func() {
			_, err := loader.LoadProgram(memory, m, program, 100)
			Expect(err).To(MatchError(emu.ErrOutOfMemory))
		})

		It("should load from a file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "prog.txt")
			Expect(os.WriteFile(path, []byte(program), 0644)).To(Succeed())

			p, err := loader.LoadFile(memory, m, path, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Footprint()).To(Equal(uint64(4)))

			_, err = loader.LoadFile(memory, m, filepath.Join(path, "missing"), 0)
			Expect(err).To(HaveOccurred())
		})
	})
})
