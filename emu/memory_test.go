package emu_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mcsim/emu"
)

var _ = Describe("Memory", func() {
	var memory *emu.Memory

	BeforeEach(func() {
		memory = emu.NewMemory(64, 63)
	})

	It("should read back written words", func() {
		memory.Write(10, 42)
		Expect(memory.Read(10)).To(Equal(int64(42)))
	})

	It("should read invalid addresses as zero and drop invalid writes", func() {
		memory.Write(1000, 7)
		Expect(memory.Read(1000)).To(Equal(int64(0)))
		Expect(memory.Contains(1000)).To(BeFalse())
	})

	It("should report the I/O address", func() {
		Expect(memory.IOAddress()).To(Equal(uint64(63)))
		Expect(memory.IsIO(63)).To(BeTrue())
		Expect(memory.IsIO(62)).To(BeFalse())
	})

	Describe("Allocate", func() {
		It("should hand out consecutive regions", func() {
			a, err := memory.Allocate(10)
			Expect(err).NotTo(HaveOccurred())
			b, err := memory.Allocate(5)
			Expect(err).NotTo(HaveOccurred())

			Expect(a).To(Equal(uint64(0)))
			Expect(b).To(Equal(uint64(10)))
		})

		It("should never include the I/O cell", func() {
			memory = emu.NewMemory(64, 20)
			_, err := memory.Allocate(15)
			Expect(err).NotTo(HaveOccurred())

			b, err := memory.Allocate(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal(uint64(21)))
		})

		It("should fail when memory is exhausted", func() {
			_, err := memory.Allocate(64)
			Expect(err).To(MatchError(emu.ErrOutOfMemory))
		})
	})

	Describe("Programs", func() {
		It("should store and return instruction text", func() {
			Expect(memory.WriteProgram(4, []string{"ADD R1 1", "SUB R1 1"})).To(Succeed())

			line, ok := memory.InstructionAt(5)
			Expect(ok).To(BeTrue())
			Expect(line).To(Equal("SUB R1 1"))

			_, ok = memory.InstructionAt(6)
			Expect(ok).To(BeFalse())
		})

		It("should clear everything on reset", func() {
			Expect(memory.WriteProgram(0, []string{"ADD R1 1"})).To(Succeed())
			memory.Write(3, 9)
			memory.Reset()

			_, ok := memory.InstructionAt(0)
			Expect(ok).To(BeFalse())
			Expect(memory.Read(3)).To(Equal(int64(0)))
		})
	})

	It("should tolerate concurrent writers", func() {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					memory.Write(uint64(i), int64(j))
				}
			}(i)
		}
		wg.Wait()

		Expect(memory.ReadRange(0, 8)).To(Equal([]int64{99, 99, 99, 99, 99, 99, 99, 99}))
	})
})
