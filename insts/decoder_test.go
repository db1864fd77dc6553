package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mcsim/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	Describe("Memory instructions", func() {
		It("should decode LOAD R1 100", func() {
			inst, err := decoder.Decode("LOAD R1 100")
			Expect(err).NotTo(HaveOccurred())

			Expect(inst.Op).To(Equal(insts.OpLOAD))
			Expect(inst.Rd).To(Equal(uint8(1)))
			Expect(inst.Src.IsReg).To(BeFalse())
			Expect(inst.Src.Imm).To(Equal(int64(100)))
		})

		It("should decode STORE with a register address", func() {
			inst, err := decoder.Decode("store r3, r4")
			Expect(err).NotTo(HaveOccurred())

			Expect(inst.Op).To(Equal(insts.OpSTORE))
			Expect(inst.Rd).To(Equal(uint8(3)))
			Expect(inst.Src.IsReg).To(BeTrue())
			Expect(inst.Src.Reg).To(Equal(uint8(4)))
			Expect(inst.Text).To(Equal("STORE r3 r4"))
		})

		It("should reject a negative address", func() {
			_, err := decoder.Decode("LOAD R1 -4")
			Expect(err).To(MatchError(insts.ErrMalformed))
		})
	})

	Describe("Arithmetic instructions", func() {
		It("should decode the three-operand immediate form", func() {
			inst, err := decoder.Decode("ADD R1, R2, #5")
			Expect(err).NotTo(HaveOccurred())

			Expect(inst.Op).To(Equal(insts.OpADD))
			Expect(inst.Rd).To(Equal(uint8(1)))
			Expect(inst.Rn).To(Equal(uint8(2)))
			Expect(inst.Src).To(Equal(insts.Operand{Imm: 5}))
		})

		It("should decode the two-operand register form", func() {
			inst, err := decoder.Decode("MUL R7 R8")
			Expect(err).NotTo(HaveOccurred())

			Expect(inst.Op).To(Equal(insts.OpMUL))
			Expect(inst.Rd).To(Equal(uint8(7)))
			Expect(inst.Rn).To(Equal(uint8(7)))
			Expect(inst.Src).To(Equal(insts.Operand{IsReg: true, Reg: 8}))
		})

		It("should reject out-of-range registers", func() {
			_, err := decoder.Decode("SUB R32 R1 1")
			Expect(err).To(MatchError(insts.ErrMalformed))
		})

		It("should reject a wrong operand count", func() {
			_, err := decoder.Decode("DIV R1")
			Expect(err).To(MatchError(insts.ErrMalformed))
		})
	})

	Describe("Control instructions", func() {
		It("should decode IF with a comparison", func() {
			inst, err := decoder.Decode("IF R1 >= 10")
			Expect(err).NotTo(HaveOccurred())

			Expect(inst.Op).To(Equal(insts.OpIF))
			Expect(inst.Rd).To(Equal(uint8(1)))
			Expect(inst.Cond).To(Equal(insts.CondGE))
			Expect(inst.Src.Imm).To(Equal(int64(10)))
		})

		It("should reject an unknown comparison", func() {
			_, err := decoder.Decode("IF R1 => 10")
			Expect(err).To(MatchError(insts.ErrMalformed))
		})

		It("should decode LOOP with a register count", func() {
			inst, err := decoder.Decode("LOOP R2")
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpLOOP))
			Expect(inst.Src).To(Equal(insts.Operand{IsReg: true, Reg: 2}))
		})

		It("should decode terminators without operands", func() {
			for line, op := range map[string]insts.Op{
				"ELSE":    insts.OpELSE,
				"I_END":   insts.OpIEND,
				"ELS_END": insts.OpELSEEND,
				"L_END":   insts.OpLEND,
			} {
				inst, err := decoder.Decode(line)
				Expect(err).NotTo(HaveOccurred())
				Expect(inst.Op).To(Equal(op))
			}
		})

		It("should reject operands on terminators", func() {
			_, err := decoder.Decode("L_END 3")
			Expect(err).To(MatchError(insts.ErrMalformed))
		})
	})

	Describe("Unknown opcodes", func() {
		It("should fail to decode", func() {
			_, err := decoder.Decode("JMP 4")
			Expect(err).To(MatchError(insts.ErrMalformed))
		})

		It("should classify as unknown", func() {
			Expect(insts.Classify("JMP 4")).To(Equal(insts.OpUnknown))
		})
	})

	Describe("Classes", func() {
		It("should group opcodes", func() {
			Expect(insts.OpLOAD.Class()).To(Equal(insts.ClassMemory))
			Expect(insts.OpDIV.Class()).To(Equal(insts.ClassArithmetic))
			Expect(insts.OpLEND.Class()).To(Equal(insts.ClassControl))
			Expect(insts.Classify("  add R1 2")).To(Equal(insts.OpADD))
		})
	})
})
