package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mcsim/emu"
	"github.com/sarchlab/mcsim/insts"
)

var _ = Describe("ALU", func() {
	var alu *emu.ALU

	BeforeEach(func() {
		alu = emu.NewALU()
	})

	DescribeTable("arithmetic",
		func(op insts.Op, lhs, rhs, want int64) {
			got, err := alu.Compute(op, lhs, rhs)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("ADD", insts.OpADD, int64(3), int64(4), int64(7)),
		Entry("SUB", insts.OpSUB, int64(3), int64(4), int64(-1)),
		Entry("MUL", insts.OpMUL, int64(3), int64(4), int64(12)),
		Entry("DIV", insts.OpDIV, int64(9), int64(4), int64(2)),
	)

	It("should yield zero and report division by zero", func() {
		got, err := alu.Compute(insts.OpDIV, 9, 0)
		Expect(err).To(MatchError(emu.ErrDivideByZero))
		Expect(got).To(Equal(int64(0)))
	})

	It("should evaluate comparisons", func() {
		Expect(alu.Compare(insts.CondLT, 1, 2)).To(BeTrue())
		Expect(alu.Compare(insts.CondGE, 1, 2)).To(BeFalse())
		Expect(alu.Compare(insts.CondNE, 2, 2)).To(BeFalse())
		Expect(alu.Compare(insts.CondEQ, 2, 2)).To(BeTrue())
	})
})

var _ = Describe("RegFile", func() {
	It("should resolve operands", func() {
		regs := &emu.RegFile{}
		regs.WriteReg(3, 11)

		Expect(regs.ReadOperand(insts.Operand{IsReg: true, Reg: 3})).To(Equal(int64(11)))
		Expect(regs.ReadOperand(insts.Operand{Imm: 5})).To(Equal(int64(5)))
	})

	It("should ignore out-of-range registers", func() {
		regs := &emu.RegFile{}
		regs.WriteReg(40, 1)
		Expect(regs.ReadReg(40)).To(Equal(int64(0)))

		regs.WriteReg(0, 9)
		regs.Reset()
		Expect(regs.ReadReg(0)).To(Equal(int64(0)))
	})
})
