package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGradeListContains(t *testing.T) {
	assert.True(t, GradeList(nil).Contains(3), "empty list places no restriction")
	assert.True(t, GradeList{}.Contains(2))
	assert.True(t, GradeList{1, 2}.Contains(2))
	assert.False(t, GradeList{1, 2}.Contains(4))
}

func TestGradeListScanValue(t *testing.T) {
	var g GradeList
	assert.NoError(t, g.Scan([]byte(`[1,2,3]`)))
	assert.Equal(t, GradeList{1, 2, 3}, g)

	assert.NoError(t, g.Scan(nil))
	assert.Nil(t, g)

	v, err := GradeList{1, 4}.Value()
	assert.NoError(t, err)
	assert.JSONEq(t, `[1,4]`, string(v.([]byte)))

	v, err = GradeList(nil).Value()
	assert.NoError(t, err)
	assert.Nil(t, v)
}

func TestTeacherSubjectCertifiedAt(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	assert.True(t, TeacherSubject{}.CertifiedAt(now), "missing expiry never expires")
	assert.False(t, TeacherSubject{CertificationExpires: &past}.CertifiedAt(now))
	future := now.Add(time.Hour)
	assert.True(t, TeacherSubject{CertificationExpires: &future}.CertifiedAt(now))
}

func TestWeekTypeOverlaps(t *testing.T) {
	assert.True(t, WeekAll.Overlaps(WeekA))
	assert.True(t, WeekA.Overlaps(WeekAll))
	assert.True(t, WeekA.Overlaps(WeekA))
	assert.False(t, WeekA.Overlaps(WeekB))
}
