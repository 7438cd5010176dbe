package domain

import "strconv"

// unknownBucket collects rows missing a year or district so they stay visible
// in the trend table instead of vanishing.
const unknownBucket = "UNKNOWN"

// AggregateTrends groups student-housing records by (year, district) and
// computes counts and the students-per-unit ratio. No decay, no spatial join.
func AggregateTrends(records []StudentHousingRecord) ([]TrendRow, QualityReport) {
	report := QualityReport{RowsSeen: len(records), RowsOut: len(records)}

	type bucket struct {
		records  int
		students int
		units    int
	}
	buckets := make(map[string]*bucket)

	for _, rec := range records {
		year := unknownBucket
		if rec.Year > 0 {
			year = strconv.Itoa(rec.Year)
		}
		district := rec.District
		if district == "" {
			district = unknownBucket
		}

		key := year + "\x1f" + district
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.records++
		b.students += rec.StudentCount
		b.units += rec.Units
	}

	rows := make([]TrendRow, 0, len(buckets))
	for _, key := range sortedKeys(buckets) {
		b := buckets[key]
		year, district := splitBucketKey(key)
		ratio := 0.0
		if b.units > 0 {
			ratio = float64(b.students) / float64(b.units)
		}
		rows = append(rows, TrendRow{
			Year:            year,
			District:        district,
			Records:         b.records,
			Students:        b.students,
			Units:           b.units,
			StudentsPerUnit: ratio,
		})
	}
	return rows, report
}

func splitBucketKey(key string) (year, district string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '\x1f' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
