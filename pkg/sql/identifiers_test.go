package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, "[Predicted_Comment]", QuoteIdentifier("Predicted_Comment"))
	assert.Equal(t, "[Order Trends]", QuoteIdentifier("[Order Trends]"))
	assert.Equal(t, "[a]]b]", QuoteIdentifier("a]b"))
	assert.Equal(t, "[x]", QuoteIdentifier(" x "))
}

func TestQuoteQualifiedName(t *testing.T) {
	assert.Equal(t, "[OrderTrends]", QuoteQualifiedName("OrderTrends"))
	assert.Equal(t, "[dbo].[OrderTrends]", QuoteQualifiedName("dbo.OrderTrends"))
	assert.Equal(t, "[Sales].[Order.Trends]", QuoteQualifiedName("[Sales].[Order.Trends]"))
	assert.Equal(t, "[dbo].[x; DROP TABLE y]", QuoteQualifiedName("dbo.x; DROP TABLE y"))
}
