package cpu

//RLC B
//#0xCB00:
func opcode0xCB00(cpu *CPU) {
	cpu.b = cpu.rlc(cpu.b)
}

//RLC C
//#0xCB01:
func opcode0xCB01(cpu *CPU) {
	cpu.c = cpu.rlc(cpu.c)
}

//RLC D
//#0xCB02:
func opcode0xCB02(cpu *CPU) {
	cpu.d = cpu.rlc(cpu.d)
}

//RLC E
//#0xCB03:
func opcode0xCB03(cpu *CPU) {
	cpu.e = cpu.rlc(cpu.e)
}

//RLC H
//#0xCB04:
func opcode0xCB04(cpu *CPU) {
	cpu.h = cpu.rlc(cpu.h)
}

//RLC L
//#0xCB05:
func opcode0xCB05(cpu *CPU) {
	cpu.l = cpu.rlc(cpu.l)
}

//RLC (HL)
//#0xCB06:
func opcode0xCB06(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), cpu.rlc(value))
}

//RLC A
//#0xCB07:
func opcode0xCB07(cpu *CPU) {
	cpu.a = cpu.rlc(cpu.a)
}

//RRC B
//#0xCB08:
func opcode0xCB08(cpu *CPU) {
	cpu.b = cpu.rrc(cpu.b)
}

//RRC C
//#0xCB09:
func opcode0xCB09(cpu *CPU) {
	cpu.c = cpu.rrc(cpu.c)
}

//RRC D
//#0xCB0A:
func opcode0xCB0A(cpu *CPU) {
	cpu.d = cpu.rrc(cpu.d)
}

//RRC E
//#0xCB0B:
func opcode0xCB0B(cpu *CPU) {
	cpu.e = cpu.rrc(cpu.e)
}

//RRC H
//#0xCB0C:
func opcode0xCB0C(cpu *CPU) {
	cpu.h = cpu.rrc(cpu.h)
}

//RRC L
//#0xCB0D:
func opcode0xCB0D(cpu *CPU) {
	cpu.l = cpu.rrc(cpu.l)
}

//RRC (HL)
//#0xCB0E:
func opcode0xCB0E(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), cpu.rrc(value))
}

//RRC A
//#0xCB0F:
func opcode0xCB0F(cpu *CPU) {
	cpu.a = cpu.rrc(cpu.a)
}

//RL B
//#0xCB10:
func opcode0xCB10(cpu *CPU) {
	cpu.b = cpu.rl(cpu.b)
}

//RL C
//#0xCB11:
func opcode0xCB11(cpu *CPU) {
	cpu.c = cpu.rl(cpu.c)
}

//RL D
//#0xCB12:
func opcode0xCB12(cpu *CPU) {
	cpu.d = cpu.rl(cpu.d)
}

//RL E
//#0xCB13:
func opcode0xCB13(cpu *CPU) {
	cpu.e = cpu.rl(cpu.e)
}

//RL H
//#0xCB14:
func opcode0xCB14(cpu *CPU) {
	cpu.h = cpu.rl(cpu.h)
}

//RL L
//#0xCB15:
func opcode0xCB15(cpu *CPU) {
	cpu.l = cpu.rl(cpu.l)
}

//RL (HL)
//#0xCB16:
func opcode0xCB16(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), cpu.rl(value))
}

//RL A
//#0xCB17:
func opcode0xCB17(cpu *CPU) {
	cpu.a = cpu.rl(cpu.a)
}

//RR B
//#0xCB18:
func opcode0xCB18(cpu *CPU) {
	cpu.b = cpu.rr(cpu.b)
}

//RR C
//#0xCB19:
func opcode0xCB19(cpu *CPU) {
	cpu.c = cpu.rr(cpu.c)
}

//RR D
//#0xCB1A:
func opcode0xCB1A(cpu *CPU) {
	cpu.d = cpu.rr(cpu.d)
}

//RR E
//#0xCB1B:
func opcode0xCB1B(cpu *CPU) {
	cpu.e = cpu.rr(cpu.e)
}

//RR H
//#0xCB1C:
func opcode0xCB1C(cpu *CPU) {
	cpu.h = cpu.rr(cpu.h)
}

//RR L
//#0xCB1D:
func opcode0xCB1D(cpu *CPU) {
	cpu.l = cpu.rr(cpu.l)
}

//RR (HL)
//#0xCB1E:
func opcode0xCB1E(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), cpu.rr(value))
}

//RR A
//#0xCB1F:
func opcode0xCB1F(cpu *CPU) {
	cpu.a = cpu.rr(cpu.a)
}

//SLA B
//#0xCB20:
func opcode0xCB20(cpu *CPU) {
	cpu.b = cpu.sla(cpu.b)
}

//SLA C
//#0xCB21:
func opcode0xCB21(cpu *CPU) {
	cpu.c = cpu.sla(cpu.c)
}

//SLA D
//#0xCB22:
func opcode0xCB22(cpu *CPU) {
	cpu.d = cpu.sla(cpu.d)
}

//SLA E
//#0xCB23:
func opcode0xCB23(cpu *CPU) {
	cpu.e = cpu.sla(cpu.e)
}

//SLA H
//#0xCB24:
func opcode0xCB24(cpu *CPU) {
	cpu.h = cpu.sla(cpu.h)
}

//SLA L
//#0xCB25:
func opcode0xCB25(cpu *CPU) {
	cpu.l = cpu.sla(cpu.l)
}

//SLA (HL)
//#0xCB26:
func opcode0xCB26(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), cpu.sla(value))
}

//SLA A
//#0xCB27:
func opcode0xCB27(cpu *CPU) {
	cpu.a = cpu.sla(cpu.a)
}

//SRA B
//#0xCB28:
func opcode0xCB28(cpu *CPU) {
	cpu.b = cpu.sra(cpu.b)
}

//SRA C
//#0xCB29:
func opcode0xCB29(cpu *CPU) {
	cpu.c = cpu.sra(cpu.c)
}

//SRA D
//#0xCB2A:
func opcode0xCB2A(cpu *CPU) {
	cpu.d = cpu.sra(cpu.d)
}

//SRA E
//#0xCB2B:
func opcode0xCB2B(cpu *CPU) {
	cpu.e = cpu.sra(cpu.e)
}

//SRA H
//#0xCB2C:
func opcode0xCB2C(cpu *CPU) {
	cpu.h = cpu.sra(cpu.h)
}

//SRA L
//#0xCB2D:
func opcode0xCB2D(cpu *CPU) {
	cpu.l = cpu.sra(cpu.l)
}

//SRA (HL)
//#0xCB2E:
func opcode0xCB2E(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), cpu.sra(value))
}

//SRA A
//#0xCB2F:
func opcode0xCB2F(cpu *CPU) {
	cpu.a = cpu.sra(cpu.a)
}

//SWAP B
//#0xCB30:
func opcode0xCB30(cpu *CPU) {
	cpu.b = cpu.swap(cpu.b)
}

//SWAP C
//#0xCB31:
func opcode0xCB31(cpu *CPU) {
	cpu.c = cpu.swap(cpu.c)
}

//SWAP D
//#0xCB32:
func opcode0xCB32(cpu *CPU) {
	cpu.d = cpu.swap(cpu.d)
}

//SWAP E
//#0xCB33:
func opcode0xCB33(cpu *CPU) {
	cpu.e = cpu.swap(cpu.e)
}

//SWAP H
//#0xCB34:
func opcode0xCB34(cpu *CPU) {
	cpu.h = cpu.swap(cpu.h)
}

//SWAP L
//#0xCB35:
func opcode0xCB35(cpu *CPU) {
	cpu.l = cpu.swap(cpu.l)
}

//SWAP (HL)
//#0xCB36:
func opcode0xCB36(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), cpu.swap(value))
}

//SWAP A
//#0xCB37:
func opcode0xCB37(cpu *CPU) {
	cpu.a = cpu.swap(cpu.a)
}

//SRL B
//#0xCB38:
func opcode0xCB38(cpu *CPU) {
	cpu.b = cpu.srl(cpu.b)
}

//SRL C
//#0xCB39:
func opcode0xCB39(cpu *CPU) {
	cpu.c = cpu.srl(cpu.c)
}

//SRL D
//#0xCB3A:
func opcode0xCB3A(cpu *CPU) {
	cpu.d = cpu.srl(cpu.d)
}

//SRL E
//#0xCB3B:
func opcode0xCB3B(cpu *CPU) {
	cpu.e = cpu.srl(cpu.e)
}

//SRL H
//#0xCB3C:
func opcode0xCB3C(cpu *CPU) {
	cpu.h = cpu.srl(cpu.h)
}

//SRL L
//#0xCB3D:
func opcode0xCB3D(cpu *CPU) {
	cpu.l = cpu.srl(cpu.l)
}

//SRL (HL)
//#0xCB3E:
func opcode0xCB3E(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), cpu.srl(value))
}

//SRL A
//#0xCB3F:
func opcode0xCB3F(cpu *CPU) {
	cpu.a = cpu.srl(cpu.a)
}

//BIT 0, B
//#0xCB40:
func opcode0xCB40(cpu *CPU) {
	cpu.bitTest(cpu.b, 0)
}

//BIT 0, C
//#0xCB41:
func opcode0xCB41(cpu *CPU) {
	cpu.bitTest(cpu.c, 0)
}

//BIT 0, D
//#0xCB42:
func opcode0xCB42(cpu *CPU) {
	cpu.bitTest(cpu.d, 0)
}

//BIT 0, E
//#0xCB43:
func opcode0xCB43(cpu *CPU) {
	cpu.bitTest(cpu.e, 0)
}

//BIT 0, H
//#0xCB44:
func opcode0xCB44(cpu *CPU) {
	cpu.bitTest(cpu.h, 0)
}

//BIT 0, L
//#0xCB45:
func opcode0xCB45(cpu *CPU) {
	cpu.bitTest(cpu.l, 0)
}

//BIT 0, (HL)
//#0xCB46:
func opcode0xCB46(cpu *CPU) {
	cpu.bitTest(cpu.readCycle(cpu.getHL()), 0)
}

//BIT 0, A
//#0xCB47:
func opcode0xCB47(cpu *CPU) {
	cpu.bitTest(cpu.a, 0)
}

//BIT 1, B
//#0xCB48:
func opcode0xCB48(cpu *CPU) {
	cpu.bitTest(cpu.b, 1)
}

//BIT 1, C
//#0xCB49:
func opcode0xCB49(cpu *CPU) {
	cpu.bitTest(cpu.c, 1)
}

//BIT 1, D
//#0xCB4A:
func opcode0xCB4A(cpu *CPU) {
	cpu.bitTest(cpu.d, 1)
}

//BIT 1, E
//#0xCB4B:
func opcode0xCB4B(cpu *CPU) {
	cpu.bitTest(cpu.e, 1)
}

//BIT 1, H
//#0xCB4C:
func opcode0xCB4C(cpu *CPU) {
	cpu.bitTest(cpu.h, 1)
}

//BIT 1, L
//#0xCB4D:
func opcode0xCB4D(cpu *CPU) {
	cpu.bitTest(cpu.l, 1)
}

//BIT 1, (HL)
//#0xCB4E:
func opcode0xCB4E(cpu *CPU) {
	cpu.bitTest(cpu.readCycle(cpu.getHL()), 1)
}

//BIT 1, A
//#0xCB4F:
func opcode0xCB4F(cpu *CPU) {
	cpu.bitTest(cpu.a, 1)
}

//BIT 2, B
//#0xCB50:
func opcode0xCB50(cpu *CPU) {
	cpu.bitTest(cpu.b, 2)
}

//BIT 2, C
//#0xCB51:
func opcode0xCB51(cpu *CPU) {
	cpu.bitTest(cpu.c, 2)
}

//BIT 2, D
//#0xCB52:
func opcode0xCB52(cpu *CPU) {
	cpu.bitTest(cpu.d, 2)
}

//BIT 2, E
//#0xCB53:
func opcode0xCB53(cpu *CPU) {
	cpu.bitTest(cpu.e, 2)
}

//BIT 2, H
//#0xCB54:
func opcode0xCB54(cpu *CPU) {
	cpu.bitTest(cpu.h, 2)
}

//BIT 2, L
//#0xCB55:
func opcode0xCB55(cpu *CPU) {
	cpu.bitTest(cpu.l, 2)
}

//BIT 2, (HL)
//#0xCB56:
func opcode0xCB56(cpu *CPU) {
	cpu.bitTest(cpu.readCycle(cpu.getHL()), 2)
}

//BIT 2, A
//#0xCB57:
func opcode0xCB57(cpu *CPU) {
	cpu.bitTest(cpu.a, 2)
}

//BIT 3, B
//#0xCB58:
func opcode0xCB58(cpu *CPU) {
	cpu.bitTest(cpu.b, 3)
}

//BIT 3, C
//#0xCB59:
func opcode0xCB59(cpu *CPU) {
	cpu.bitTest(cpu.c, 3)
}

//BIT 3, D
//#0xCB5A:
func opcode0xCB5A(cpu *CPU) {
	cpu.bitTest(cpu.d, 3)
}

//BIT 3, E
//#0xCB5B:
func opcode0xCB5B(cpu *CPU) {
	cpu.bitTest(cpu.e, 3)
}

//BIT 3, H
//#0xCB5C:
func opcode0xCB5C(cpu *CPU) {
	cpu.bitTest(cpu.h, 3)
}

//BIT 3, L
//#0xCB5D:
func opcode0xCB5D(cpu *CPU) {
	cpu.bitTest(cpu.l, 3)
}

//BIT 3, (HL)
//#0xCB5E:
func opcode0xCB5E(cpu *CPU) {
	cpu.bitTest(cpu.readCycle(cpu.getHL()), 3)
}

//BIT 3, A
//#0xCB5F:
func opcode0xCB5F(cpu *CPU) {
	cpu.bitTest(cpu.a, 3)
}

//BIT 4, B
//#0xCB60:
func opcode0xCB60(cpu *CPU) {
	cpu.bitTest(cpu.b, 4)
}

//BIT 4, C
//#0xCB61:
func opcode0xCB61(cpu *CPU) {
	cpu.bitTest(cpu.c, 4)
}

//BIT 4, D
//#0xCB62:
func opcode0xCB62(cpu *CPU) {
	cpu.bitTest(cpu.d, 4)
}

//BIT 4, E
//#0xCB63:
func opcode0xCB63(cpu *CPU) {
	cpu.bitTest(cpu.e, 4)
}

//BIT 4, H
//#0xCB64:
func opcode0xCB64(cpu *CPU) {
	cpu.bitTest(cpu.h, 4)
}

//BIT 4, L
//#0xCB65:
func opcode0xCB65(cpu *CPU) {
	cpu.bitTest(cpu.l, 4)
}

//BIT 4, (HL)
//#0xCB66:
func opcode0xCB66(cpu *CPU) {
	cpu.bitTest(cpu.readCycle(cpu.getHL()), 4)
}

//BIT 4, A
//#0xCB67:
func opcode0xCB67(cpu *CPU) {
	cpu.bitTest(cpu.a, 4)
}

//BIT 5, B
//#0xCB68:
func opcode0xCB68(cpu *CPU) {
	cpu.bitTest(cpu.b, 5)
}

//BIT 5, C
//#0xCB69:
func opcode0xCB69(cpu *CPU) {
	cpu.bitTest(cpu.c, 5)
}

//BIT 5, D
//#0xCB6A:
func opcode0xCB6A(cpu *CPU) {
	cpu.bitTest(cpu.d, 5)
}

//BIT 5, E
//#0xCB6B:
func opcode0xCB6B(cpu *CPU) {
	cpu.bitTest(cpu.e, 5)
}

//BIT 5, H
//#0xCB6C:
func opcode0xCB6C(cpu *CPU) {
	cpu.bitTest(cpu.h, 5)
}

//BIT 5, L
//#0xCB6D:
func opcode0xCB6D(cpu *CPU) {
	cpu.bitTest(cpu.l, 5)
}

//BIT 5, (HL)
//#0xCB6E:
func opcode0xCB6E(cpu *CPU) {
	cpu.bitTest(cpu.readCycle(cpu.getHL()), 5)
}

//BIT 5, A
//#0xCB6F:
func opcode0xCB6F(cpu *CPU) {
	cpu.bitTest(cpu.a, 5)
}

//BIT 6, B
//#0xCB70:
func opcode0xCB70(cpu *CPU) {
	cpu.bitTest(cpu.b, 6)
}

//BIT 6, C
//#0xCB71:
func opcode0xCB71(cpu *CPU) {
	cpu.bitTest(cpu.c, 6)
}

//BIT 6, D
//#0xCB72:
func opcode0xCB72(cpu *CPU) {
	cpu.bitTest(cpu.d, 6)
}

//BIT 6, E
//#0xCB73:
func opcode0xCB73(cpu *CPU) {
	cpu.bitTest(cpu.e, 6)
}

//BIT 6, H
//#0xCB74:
func opcode0xCB74(cpu *CPU) {
	cpu.bitTest(cpu.h, 6)
}

//BIT 6, L
//#0xCB75:
func opcode0xCB75(cpu *CPU) {
	cpu.bitTest(cpu.l, 6)
}

//BIT 6, (HL)
//#0xCB76:
func opcode0xCB76(cpu *CPU) {
	cpu.bitTest(cpu.readCycle(cpu.getHL()), 6)
}

//BIT 6, A
//#0xCB77:
func opcode0xCB77(cpu *CPU) {
	cpu.bitTest(cpu.a, 6)
}

//BIT 7, B
//#0xCB78:
func opcode0xCB78(cpu *CPU) {
	cpu.bitTest(cpu.b, 7)
}

//BIT 7, C
//#0xCB79:
func opcode0xCB79(cpu *CPU) {
	cpu.bitTest(cpu.c, 7)
}

//BIT 7, D
//#0xCB7A:
func opcode0xCB7A(cpu *CPU) {
	cpu.bitTest(cpu.d, 7)
}

//BIT 7, E
//#0xCB7B:
func opcode0xCB7B(cpu *CPU) {
	cpu.bitTest(cpu.e, 7)
}

//BIT 7, H
//#0xCB7C:
func opcode0xCB7C(cpu *CPU) {
	cpu.bitTest(cpu.h, 7)
}

//BIT 7, L
//#0xCB7D:
func opcode0xCB7D(cpu *CPU) {
	cpu.bitTest(cpu.l, 7)
}

//BIT 7, (HL)
//#0xCB7E:
func opcode0xCB7E(cpu *CPU) {
	cpu.bitTest(cpu.readCycle(cpu.getHL()), 7)
}

//BIT 7, A
//#0xCB7F:
func opcode0xCB7F(cpu *CPU) {
	cpu.bitTest(cpu.a, 7)
}

//RES 0, B
//#0xCB80:
func opcode0xCB80(cpu *CPU) {
	cpu.b &= ^uint8(1 << 0)
}

//RES 0, C
//#0xCB81:
func opcode0xCB81(cpu *CPU) {
	cpu.c &= ^uint8(1 << 0)
}

//RES 0, D
//#0xCB82:
func opcode0xCB82(cpu *CPU) {
	cpu.d &= ^uint8(1 << 0)
}

//RES 0, E
//#0xCB83:
func opcode0xCB83(cpu *CPU) {
	cpu.e &= ^uint8(1 << 0)
}

//RES 0, H
//#0xCB84:
func opcode0xCB84(cpu *CPU) {
	cpu.h &= ^uint8(1 << 0)
}

//RES 0, L
//#0xCB85:
func opcode0xCB85(cpu *CPU) {
	cpu.l &= ^uint8(1 << 0)
}

//RES 0, (HL)
//#0xCB86:
func opcode0xCB86(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), value & ^uint8(1<<0))
}

//RES 0, A
//#0xCB87:
func opcode0xCB87(cpu *CPU) {
	cpu.a &= ^uint8(1 << 0)
}

//RES 1, B
//#0xCB88:
func opcode0xCB88(cpu *CPU) {
	cpu.b &= ^uint8(1 << 1)
}

//RES 1, C
//#0xCB89:
func opcode0xCB89(cpu *CPU) {
	cpu.c &= ^uint8(1 << 1)
}

//RES 1, D
//#0xCB8A:
func opcode0xCB8A(cpu *CPU) {
	cpu.d &= ^uint8(1 << 1)
}

//RES 1, E
//#0xCB8B:
func opcode0xCB8B(cpu *CPU) {
	cpu.e &= ^uint8(1 << 1)
}

//RES 1, H
//#0xCB8C:
func opcode0xCB8C(cpu *CPU) {
	cpu.h &= ^uint8(1 << 1)
}

//RES 1, L
//#0xCB8D:
func opcode0xCB8D(cpu *CPU) {
	cpu.l &= ^uint8(1 << 1)
}

//RES 1, (HL)
//#0xCB8E:
func opcode0xCB8E(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), value & ^uint8(1<<1))
}

//RES 1, A
//#0xCB8F:
func opcode0xCB8F(cpu *CPU) {
	cpu.a &= ^uint8(1 << 1)
}

//RES 2, B
//#0xCB90:
func opcode0xCB90(cpu *CPU) {
	cpu.b &= ^uint8(1 << 2)
}

//RES 2, C
//#0xCB91:
func opcode0xCB91(cpu *CPU) {
	cpu.c &= ^uint8(1 << 2)
}

//RES 2, D
//#0xCB92:
func opcode0xCB92(cpu *CPU) {
	cpu.d &= ^uint8(1 << 2)
}

//RES 2, E
//#0xCB93:
func opcode0xCB93(cpu *CPU) {
	cpu.e &= ^uint8(1 << 2)
}

//RES 2, H
//#0xCB94:
func opcode0xCB94(cpu *CPU) {
	cpu.h &= ^uint8(1 << 2)
}

//RES 2, L
//#0xCB95:
func opcode0xCB95(cpu *CPU) {
	cpu.l &= ^uint8(1 << 2)
}

//RES 2, (HL)
//#0xCB96:
func opcode0xCB96(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), value & ^uint8(1<<2))
}

//RES 2, A
//#0xCB97:
func opcode0xCB97(cpu *CPU) {
	cpu.a &= ^uint8(1 << 2)
}

//RES 3, B
//#0xCB98:
func opcode0xCB98(cpu *CPU) {
	cpu.b &= ^uint8(1 << 3)
}

//RES 3, C
//#0xCB99:
func opcode0xCB99(cpu *CPU) {
	cpu.c &= ^uint8(1 << 3)
}

//RES 3, D
//#0xCB9A:
func opcode0xCB9A(cpu *CPU) {
	cpu.d &= ^uint8(1 << 3)
}

//RES 3, E
//#0xCB9B:
func opcode0xCB9B(cpu *CPU) {
	cpu.e &= ^uint8(1 << 3)
}

//RES 3, H
//#0xCB9C:
func opcode0xCB9C(cpu *CPU) {
	cpu.h &= ^uint8(1 << 3)
}

//RES 3, L
//#0xCB9D:
func opcode0xCB9D(cpu *CPU) {
	cpu.l &= ^uint8(1 << 3)
}

//RES 3, (HL)
//#0xCB9E:
func opcode0xCB9E(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), value & ^uint8(1<<3))
}

//RES 3, A
//#0xCB9F:
func opcode0xCB9F(cpu *CPU) {
	cpu.a &= ^uint8(1 << 3)
}

//RES 4, B
//#0xCBA0:
func opcode0xCBA0(cpu *CPU) {
	cpu.b &= ^uint8(1 << 4)
}

//RES 4, C
//#0xCBA1:
func opcode0xCBA1(cpu *CPU) {
	cpu.c &= ^uint8(1 << 4)
}

//RES 4, D
//#0xCBA2:
func opcode0xCBA2(cpu *CPU) {
	cpu.d &= ^uint8(1 << 4)
}

//RES 4, E
//#0xCBA3:
func opcode0xCBA3(cpu *CPU) {
	cpu.e &= ^uint8(1 << 4)
}

//RES 4, H
//#0xCBA4:
func opcode0xCBA4(cpu *CPU) {
	cpu.h &= ^uint8(1 << 4)
}

//RES 4, L
//#0xCBA5:
func opcode0xCBA5(cpu *CPU) {
	cpu.l &= ^uint8(1 << 4)
}

//RES 4, (HL)
//#0xCBA6:
func opcode0xCBA6(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), value & ^uint8(1<<4))
}

//RES 4, A
//#0xCBA7:
func opcode0xCBA7(cpu *CPU) {
	cpu.a &= ^uint8(1 << 4)
}

//RES 5, B
//#0xCBA8:
func opcode0xCBA8(cpu *CPU) {
	cpu.b &= ^uint8(1 << 5)
}

//RES 5, C
//#0xCBA9:
func opcode0xCBA9(cpu *CPU) {
	cpu.c &= ^uint8(1 << 5)
}

//RES 5, D
//#0xCBAA:
func opcode0xCBAA(cpu *CPU) {
	cpu.d &= ^uint8(1 << 5)
}

//RES 5, E
//#0xCBAB:
func opcode0xCBAB(cpu *CPU) {
	cpu.e &= ^uint8(1 << 5)
}

//RES 5, H
//#0xCBAC:
func opcode0xCBAC(cpu *CPU) {
	cpu.h &= ^uint8(1 << 5)
}

//RES 5, L
//#0xCBAD:
func opcode0xCBAD(cpu *CPU) {
	cpu.l &= ^uint8(1 << 5)
}

//RES 5, (HL)
//#0xCBAE:
func opcode0xCBAE(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), value & ^uint8(1<<5))
}

//RES 5, A
//#0xCBAF:
func opcode0xCBAF(cpu *CPU) {
	cpu.a &= ^uint8(1 << 5)
}

//RES 6, B
//#0xCBB0:
func opcode0xCBB0(cpu *CPU) {
	cpu.b &= ^uint8(1 << 6)
}

//RES 6, C
//#0xCBB1:
func opcode0xCBB1(cpu *CPU) {
	cpu.c &= ^uint8(1 << 6)
}

//RES 6, D
//#0xCBB2:
func opcode0xCBB2(cpu *CPU) {
	cpu.d &= ^uint8(1 << 6)
}

//RES 6, E
//#0xCBB3:
func opcode0xCBB3(cpu *CPU) {
	cpu.e &= ^uint8(1 << 6)
}

//RES 6, H
//#0xCBB4:
func opcode0xCBB4(cpu *CPU) {
	cpu.h &= ^uint8(1 << 6)
}

//RES 6, L
//#0xCBB5:
func opcode0xCBB5(cpu *CPU) {
	cpu.l &= ^uint8(1 << 6)
}

//RES 6, (HL)
//#0xCBB6:
func opcode0xCBB6(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), value & ^uint8(1<<6))
}

//RES 6, A
//#0xCBB7:
func opcode0xCBB7(cpu *CPU) {
	cpu.a &= ^uint8(1 << 6)
}

//RES 7, B
//#0xCBB8:
func opcode0xCBB8(cpu *CPU) {
	cpu.b &= ^uint8(1 << 7)
}

//RES 7, C
//#0xCBB9:
func opcode0xCBB9(cpu *CPU) {
	cpu.c &= ^uint8(1 << 7)
}

//RES 7, D
//#0xCBBA:
func opcode0xCBBA(cpu *CPU) {
	cpu.d &= ^uint8(1 << 7)
}

//RES 7, E
//#0xCBBB:
func opcode0xCBBB(cpu *CPU) {
	cpu.e &= ^uint8(1 << 7)
}

//RES 7, H
//#0xCBBC:
func opcode0xCBBC(cpu *CPU) {
	cpu.h &= ^uint8(1 << 7)
}

//RES 7, L
//#0xCBBD:
func opcode0xCBBD(cpu *CPU) {
	cpu.l &= ^uint8(1 << 7)
}

//RES 7, (HL)
//#0xCBBE:
func opcode0xCBBE(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), value & ^uint8(1<<7))
}

//RES 7, A
//#0xCBBF:
func opcode0xCBBF(cpu *CPU) {
	cpu.a &= ^uint8(1 << 7)
}

//SET 0, B
//#0xCBC0:
func opcode0xCBC0(cpu *CPU) {
	cpu.b |= 1 << 0
}

//SET 0, C
//#0xCBC1:
func opcode0xCBC1(cpu *CPU) {
	cpu.c |= 1 << 0
}

//SET 0, D
//#0xCBC2:
func opcode0xCBC2(cpu *CPU) {
	cpu.d |= 1 << 0
}

//SET 0, E
//#0xCBC3:
func opcode0xCBC3(cpu *CPU) {
	cpu.e |= 1 << 0
}

//SET 0, H
//#0xCBC4:
func opcode0xCBC4(cpu *CPU) {
	cpu.h |= 1 << 0
}

//SET 0, L
//#0xCBC5:
func opcode0xCBC5(cpu *CPU) {
	cpu.l |= 1 << 0
}

//SET 0, (HL)
//#0xCBC6:
func opcode0xCBC6(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), value | 1<<0)
}

//SET 0, A
//#0xCBC7:
func opcode0xCBC7(cpu *CPU) {
	cpu.a |= 1 << 0
}

//SET 1, B
//#0xCBC8:
func opcode0xCBC8(cpu *CPU) {
	cpu.b |= 1 << 1
}

//SET 1, C
//#0xCBC9:
func opcode0xCBC9(cpu *CPU) {
	cpu.c |= 1 << 1
}

//SET 1, D
//#0xCBCA:
func opcode0xCBCA(cpu *CPU) {
	cpu.d |= 1 << 1
}

//SET 1, E
//#0xCBCB:
func opcode0xCBCB(cpu *CPU) {
	cpu.e |= 1 << 1
}

//SET 1, H
//#0xCBCC:
func opcode0xCBCC(cpu *CPU) {
	cpu.h |= 1 << 1
}

//SET 1, L
//#0xCBCD:
func opcode0xCBCD(cpu *CPU) {
	cpu.l |= 1 << 1
}

//SET 1, (HL)
//#0xCBCE:
func opcode0xCBCE(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), value | 1<<1)
}

//SET 1, A
//#0xCBCF:
func opcode0xCBCF(cpu *CPU) {
	cpu.a |= 1 << 1
}

//SET 2, B
//#0xCBD0:
func opcode0xCBD0(cpu *CPU) {
	cpu.b |= 1 << 2
}

//SET 2, C
//#0xCBD1:
func opcode0xCBD1(cpu *CPU) {
	cpu.c |= 1 << 2
}

//SET 2, D
//#0xCBD2:
func opcode0xCBD2(cpu *CPU) {
	cpu.d |= 1 << 2
}

//SET 2, E
//#0xCBD3:
func opcode0xCBD3(cpu *CPU) {
	cpu.e |= 1 << 2
}

//SET 2, H
//#0xCBD4:
func opcode0xCBD4(cpu *CPU) {
	cpu.h |= 1 << 2
}

//SET 2, L
//#0xCBD5:
func opcode0xCBD5(cpu *CPU) {
	cpu.l |= 1 << 2
}

//SET 2, (HL)
//#0xCBD6:
func opcode0xCBD6(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), value | 1<<2)
}

//SET 2, A
//#0xCBD7:
func opcode0xCBD7(cpu *CPU) {
	cpu.a |= 1 << 2
}

//SET 3, B
//#0xCBD8:
func opcode0xCBD8(cpu *CPU) {
	cpu.b |= 1 << 3
}

//SET 3, C
//#0xCBD9:
func opcode0xCBD9(cpu *CPU) {
	cpu.c |= 1 << 3
}

//SET 3, D
//#0xCBDA:
func opcode0xCBDA(cpu *CPU) {
	cpu.d |= 1 << 3
}

//SET 3, E
//#0xCBDB:
func opcode0xCBDB(cpu *CPU) {
	cpu.e |= 1 << 3
}

//SET 3, H
//#0xCBDC:
func opcode0xCBDC(cpu *CPU) {
	cpu.h |= 1 << 3
}

//SET 3, L
//#0xCBDD:
func opcode0xCBDD(cpu *CPU) {
	cpu.l |= 1 << 3
}

//SET 3, (HL)
//#0xCBDE:
func opcode0xCBDE(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), value | 1<<3)
}

//SET 3, A
//#0xCBDF:
func opcode0xCBDF(cpu *CPU) {
	cpu.a |= 1 << 3
}

//SET 4, B
//#0xCBE0:
func opcode0xCBE0(cpu *CPU) {
	cpu.b |= 1 << 4
}

//SET 4, C
//#0xCBE1:
func opcode0xCBE1(cpu *CPU) {
	cpu.c |= 1 << 4
}

//SET 4, D
//#0xCBE2:
func opcode0xCBE2(cpu *CPU) {
	cpu.d |= 1 << 4
}

//SET 4, E
//#0xCBE3:
func opcode0xCBE3(cpu *CPU) {
	cpu.e |= 1 << 4
}

//SET 4, H
//#0xCBE4:
func opcode0xCBE4(cpu *CPU) {
	cpu.h |= 1 << 4
}

//SET 4, L
//#0xCBE5:
func opcode0xCBE5(cpu *CPU) {
	cpu.l |= 1 << 4
}

//SET 4, (HL)
//#0xCBE6:
func opcode0xCBE6(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), value | 1<<4)
}

//SET 4, A
//#0xCBE7:
func opcode0xCBE7(cpu *CPU) {
	cpu.a |= 1 << 4
}

//SET 5, B
//#0xCBE8:
func opcode0xCBE8(cpu *CPU) {
	cpu.b |= 1 << 5
}

//SET 5, C
//#0xCBE9:
func opcode0xCBE9(cpu *CPU) {
	cpu.c |= 1 << 5
}

//SET 5, D
//#0xCBEA:
func opcode0xCBEA(cpu *CPU) {
	cpu.d |= 1 << 5
}

//SET 5, E
//#0xCBEB:
func opcode0xCBEB(cpu *CPU) {
	cpu.e |= 1 << 5
}

//SET 5, H
//#0xCBEC:
func opcode0xCBEC(cpu *CPU) {
	cpu.h |= 1 << 5
}

//SET 5, L
//#0xCBED:
func opcode0xCBED(cpu *CPU) {
	cpu.l |= 1 << 5
}

//SET 5, (HL)
//#0xCBEE:
func opcode0xCBEE(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), value | 1<<5)
}

//SET 5, A
//#0xCBEF:
func opcode0xCBEF(cpu *CPU) {
	cpu.a |= 1 << 5
}

//SET 6, B
//#0xCBF0:
func opcode0xCBF0(cpu *CPU) {
	cpu.b |= 1 << 6
}

//SET 6, C
//#0xCBF1:
func opcode0xCBF1(cpu *CPU) {
	cpu.c |= 1 << 6
}

//SET 6, D
//#0xCBF2:
func opcode0xCBF2(cpu *CPU) {
	cpu.d |= 1 << 6
}

//SET 6, E
//#0xCBF3:
func opcode0xCBF3(cpu *CPU) {
	cpu.e |= 1 << 6
}

//SET 6, H
//#0xCBF4:
func opcode0xCBF4(cpu *CPU) {
	cpu.h |= 1 << 6
}

//SET 6, L
//#0xCBF5:
func opcode0xCBF5(cpu *CPU) {
	cpu.l |= 1 << 6
}

//SET 6, (HL)
//#0xCBF6:
func opcode0xCBF6(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), value | 1<<6)
}

//SET 6, A
//#0xCBF7:
func opcode0xCBF7(cpu *CPU) {
	cpu.a |= 1 << 6
}

//SET 7, B
//#0xCBF8:
func opcode0xCBF8(cpu *CPU) {
	cpu.b |= 1 << 7
}

//SET 7, C
//#0xCBF9:
func opcode0xCBF9(cpu *CPU) {
	cpu.c |= 1 << 7
}

//SET 7, D
//#0xCBFA:
func opcode0xCBFA(cpu *CPU) {
	cpu.d |= 1 << 7
}

//SET 7, E
//#0xCBFB:
func opcode0xCBFB(cpu *CPU) {
	cpu.e |= 1 << 7
}

//SET 7, H
//#0xCBFC:
func opcode0xCBFC(cpu *CPU) {
	cpu.h |= 1 << 7
}

//SET 7, L
//#0xCBFD:
func opcode0xCBFD(cpu *CPU) {
	cpu.l |= 1 << 7
}

//SET 7, (HL)
//#0xCBFE:
func opcode0xCBFE(cpu *CPU) {
	value := cpu.readCycle(cpu.getHL())
	cpu.writeCycle(cpu.getHL(), value | 1<<7)
}

//SET 7, A
//#0xCBFF:
func opcode0xCBFF(cpu *CPU) {
	cpu.a |= 1 << 7
}
