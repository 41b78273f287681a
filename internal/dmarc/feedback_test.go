package dmarc

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/dmarcwatch/internal/enum"
)

const sampleFeedback = `<?xml version="1.0" encoding="UTF-8"?>
<feedback>
  <report_metadata>
    <org_name>google.com</org_name>
    <email>noreply-dmarc-support@google.com</email>
    <report_id>12345678901234567890</report_id>
    <date_range>
      <begin>1714521600</begin>
      <end>1714607999</end>
    </date_range>
  </report_metadata>
  <policy_published>
    <domain>example.com</domain>
    <adkim>r</adkim>
    <aspf>r</aspf>
    <p>quarantine</p>
    <sp>none</sp>
    <pct>100</pct>
  </policy_published>
  <record>
    <row>
      <source_ip>209.85.220.41</source_ip>
      <count>5</count>
      <policy_evaluated>
        <disposition>none</disposition>
        <dkim>pass</dkim>
        <spf>pass</spf>
      </policy_evaluated>
    </row>
  </record>
  <record>
    <row>
      <source_ip>50.63.9.60</source_ip>
      <count>3</count>
      <policy_evaluated>
        <disposition>quarantine</disposition>
        <dkim>fail</dkim>
        <spf>fail</spf>
      </policy_evaluated>
    </row>
  </record>
</feedback>`

func TestParse(t *testing.T) {
	fb, err := Parse([]byte(sampleFeedback))
	require.NoError(t, err)

	assert.Equal(t, "google.com", fb.OrgName)
	assert.Equal(t, "12345678901234567890", fb.ReportID)
	assert.Equal(t, "example.com", fb.Domain)
	assert.Equal(t, int64(1714521600), fb.DateBegin)
	assert.Equal(t, int64(1714607999), fb.DateEnd)
	assert.Equal(t, enum.PolicyModeQuarantine, fb.Policy.Mode)
	assert.Equal(t, enum.PolicyModeNone, fb.Policy.SubdomainMode)
	assert.Equal(t, 100, fb.Policy.Pct)

	require.Len(t, fb.Records, 2)
	assert.Equal(t, "209.85.220.41", fb.Records[0].SourceIP)
	assert.Equal(t, 5, fb.Records[0].Count)
	assert.Equal(t, enum.AuthResultPass, fb.Records[0].DKIM)
	assert.Equal(t, enum.AuthResultFail, fb.Records[1].SPF)
	assert.Equal(t, enum.DispositionQuarantine, fb.Records[1].Disposition)
	assert.Equal(t, 8, fb.TotalMessages())
}

func TestParseMissingFieldsDefault(t *testing.T) {
	fb, err := Parse([]byte(`<feedback><record><row><source_ip>1.2.3.4</source_ip></row></record></feedback>`))
	require.NoError(t, err)

	assert.Equal(t, "Unknown", fb.OrgName)
	assert.Equal(t, "Unknown", fb.ReportID)
	assert.Equal(t, "Unknown", fb.Domain)
	assert.Equal(t, 100, fb.Policy.Pct)
	assert.Equal(t, enum.PolicyModeNone, fb.Policy.Mode)

	require.Len(t, fb.Records, 1)
	assert.Equal(t, 0, fb.Records[0].Count)
	assert.Equal(t, enum.AuthResultUnknown, fb.Records[0].DKIM)
	assert.Equal(t, enum.AuthResultUnknown, fb.Records[0].SPF)
}

func TestParseRejectsBrokenXML(t *testing.T) {
	_, err := Parse([]byte(`<feedback><unterminated`))
	assert.Error(t, err)
}

func TestToReport(t *testing.T) {
	fb, err := Parse([]byte(sampleFeedback))
	require.NoError(t, err)

	report := fb.ToReport()
	assert.Equal(t, "example.com", report.Domain)
	assert.Equal(t, 8, report.TotalMessages)
	assert.Equal(t, 2, report.TotalSources)
	require.Len(t, report.Records, 2)
	assert.InDelta(t, 62.5, report.AuthSuccessRate(), 0.001)
}

func TestExtractXMLGzip(t *testing.T) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	_, err := writer.Write([]byte(sampleFeedback))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	content, err := ExtractXML(buf.Bytes(), "google.com!example.com.xml.gz")
	require.NoError(t, err)
	assert.Equal(t, []byte(sampleFeedback), content)
}

func TestExtractXMLZip(t *testing.T) {
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	entry, err := writer.Create("report.xml")
	require.NoError(t, err)
	_, err = entry.Write([]byte(sampleFeedback))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	content, err := ExtractXML(buf.Bytes(), "report.zip")
	require.NoError(t, err)
	assert.Equal(t, []byte(sampleFeedback), content)
}

func TestExtractXMLZipWithoutXML(t *testing.T) {
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	entry, err := writer.Create("readme.txt")
	require.NoError(t, err)
	_, err = entry.Write([]byte("not a report"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	_, err = ExtractXML(buf.Bytes(), "report.zip")
	assert.Error(t, err)
}

func TestIsReportAttachment(t *testing.T) {
	assert.True(t, IsReportAttachment("report.xml"))
	assert.True(t, IsReportAttachment("report.XML.GZ"))
	assert.True(t, IsReportAttachment("report.zip"))
	assert.False(t, IsReportAttachment("invoice.pdf"))
}
