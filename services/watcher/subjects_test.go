package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandSubject(t *testing.T) {
	courses := []string{
		"Дискретная математика",
		"Физика",
		"Иностранный язык",
	}

	assert.Equal(t, "Дискретная математика", ExpandSubject("ДМ", courses))
	assert.Equal(t, "Физика", ExpandSubject("ф", courses))
	assert.Equal(t, "Дискретная математика", ExpandSubject("Дискретная математ.", courses))
	// nothing close enough, the label passes through
	assert.Equal(t, "Начертательная геометрия", ExpandSubject("Начертательная геометрия", courses))
}
