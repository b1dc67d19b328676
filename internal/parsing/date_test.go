package parsing

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseDate", func() {
	It("parses day-first slash dates", func() {
		d := ParseDate("Date: 12/05/2023")
		Expect(d).NotTo(BeNil())
		Expect(d.Year()).To(Equal(2023))
		Expect(d.Month()).To(Equal(time.May))
		Expect(d.Day()).To(Equal(12))
	})

	It("parses day-month-name dates", func() {
		d := ParseDate("15 Jan 2024 10:30 AM")
		Expect(d).NotTo(BeNil())
		Expect(d.Month()).To(Equal(time.January))
		Expect(d.Day()).To(Equal(15))
		Expect(d.Year()).To(Equal(2024))
	})

	It("parses ISO-ordered dates", func() {
		d := ParseDate("2024-01-15")
		Expect(d).NotTo(BeNil())
		Expect(d.Year()).To(Equal(2024))
		Expect(d.Month()).To(Equal(time.January))
		Expect(d.Day()).To(Equal(15))
	})

	It("expands two-digit years to 2000+", func() {
		d := ParseDate("01/02/24")
		Expect(d).NotTo(BeNil())
		Expect(d.Year()).To(Equal(2024))
	})

	It("parses full month names by prefix", func() {
		d := ParseDate("3 September 2023")
		Expect(d).NotTo(BeNil())
		Expect(d.Month()).To(Equal(time.September))
	})

	It("skips calendar-invalid matches and tries the next pattern", func() {
		// 25/13/2023 cannot be day-first or month-first
		d := ParseDate("25/13/2023 printed 15 Jan 2024")
		Expect(d).NotTo(BeNil())
		Expect(d.Month()).To(Equal(time.January))
		Expect(d.Day()).To(Equal(15))
	})

	It("returns nil when no date is present", func() {
		Expect(ParseDate("no dates here")).To(BeNil())
	})
})
