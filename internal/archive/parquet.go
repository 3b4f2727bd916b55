package archive

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/seenimoa/fnopart/pkg/models"
)

type participantRecord struct {
	Date                 string   `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	ClientType           string   `parquet:"name=client_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	FutureIndexLong      float64  `parquet:"name=future_index_long, type=DOUBLE"`
	FutureIndexShort     float64  `parquet:"name=future_index_short, type=DOUBLE"`
	FutureStockLong      float64  `parquet:"name=future_stock_long, type=DOUBLE"`
	FutureStockShort     float64  `parquet:"name=future_stock_short, type=DOUBLE"`
	OptionIndexCallLong  float64  `parquet:"name=option_index_call_long, type=DOUBLE"`
	OptionIndexPutLong   float64  `parquet:"name=option_index_put_long, type=DOUBLE"`
	OptionIndexCallShort float64  `parquet:"name=option_index_call_short, type=DOUBLE"`
	OptionIndexPutShort  float64  `parquet:"name=option_index_put_short, type=DOUBLE"`
	OptionStockCallLong  float64  `parquet:"name=option_stock_call_long, type=DOUBLE"`
	OptionStockPutLong   float64  `parquet:"name=option_stock_put_long, type=DOUBLE"`
	OptionStockCallShort float64  `parquet:"name=option_stock_call_short, type=DOUBLE"`
	OptionStockPutShort  float64  `parquet:"name=option_stock_put_short, type=DOUBLE"`
	TotalLong            *float64 `parquet:"name=total_long, type=DOUBLE, repetitiontype=OPTIONAL"`
	TotalShort           *float64 `parquet:"name=total_short, type=DOUBLE, repetitiontype=OPTIONAL"`
}

type fiiStatsRecord struct {
	Date          string   `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Instrument    string   `parquet:"name=instrument, type=BYTE_ARRAY, convertedtype=UTF8"`
	OIContracts   float64  `parquet:"name=oi_contracts, type=DOUBLE"`
	OIValue       *float64 `parquet:"name=oi_value, type=DOUBLE, repetitiontype=OPTIONAL"`
	BuyContracts  *float64 `parquet:"name=buy_contracts, type=DOUBLE, repetitiontype=OPTIONAL"`
	BuyValue      *float64 `parquet:"name=buy_value, type=DOUBLE, repetitiontype=OPTIONAL"`
	SellContracts *float64 `parquet:"name=sell_contracts, type=DOUBLE, repetitiontype=OPTIONAL"`
	SellValue     *float64 `parquet:"name=sell_value, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// memFile is a write-only in-memory parquet target.
type memFile struct {
	buf *bytes.Buffer
}

func newMemFile() *memFile { return &memFile{buf: &bytes.Buffer{}} }

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buf.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, fmt.Errorf("read not supported") }
func (m *memFile) Write(b []byte) (int, error)               { return m.buf.Write(b) }
func (m *memFile) Close() error                              { return nil }

func compressionCodec(name string) parquet.CompressionCodec {
	switch strings.ToLower(name) {
	case "snappy":
		return parquet.CompressionCodec_SNAPPY
	case "gzip":
		return parquet.CompressionCodec_GZIP
	default:
		return parquet.CompressionCodec_UNCOMPRESSED
	}
}

// encodeParquet writes records (a slice of one record type) to a parquet file in memory.
func encodeParquet[T any](records []T, compression string) ([]byte, error) {
	mem := newMemFile()
	pw, err := writer.NewParquetWriter(mem, new(T), 1)
	if err != nil {
		return nil, fmt.Errorf("new parquet writer: %w", err)
	}
	pw.CompressionType = compressionCodec(compression)

	for _, rec := range records {
		if err := pw.Write(rec); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet: %w", err)
	}
	return mem.buf.Bytes(), nil
}

func participantRecords(date string, rows []models.ParticipantOIRow) []participantRecord {
	out := make([]participantRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, participantRecord{
			Date:                 date,
			ClientType:           r.ClientType,
			FutureIndexLong:      r.FutureIndexLong,
			FutureIndexShort:     r.FutureIndexShort,
			FutureStockLong:      r.FutureStockLong,
			FutureStockShort:     r.FutureStockShort,
			OptionIndexCallLong:  r.OptionIndexCallLong,
			OptionIndexPutLong:   r.OptionIndexPutLong,
			OptionIndexCallShort: r.OptionIndexCallShort,
			OptionIndexPutShort:  r.OptionIndexPutShort,
			OptionStockCallLong:  r.OptionStockCallLong,
			OptionStockPutLong:   r.OptionStockPutLong,
			OptionStockCallShort: r.OptionStockCallShort,
			OptionStockPutShort:  r.OptionStockPutShort,
			TotalLong:            r.TotalLong,
			TotalShort:           r.TotalShort,
		})
	}
	return out
}

func fiiStatsRecords(date string, rows []models.FIIStatsRow) []fiiStatsRecord {
	out := make([]fiiStatsRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, fiiStatsRecord{
			Date:          date,
			Instrument:    r.Instrument,
			OIContracts:   r.OIContracts,
			OIValue:       r.OIValue,
			BuyContracts:  r.BuyContracts,
			BuyValue:      r.BuyValue,
			SellContracts: r.SellContracts,
			SellValue:     r.SellValue,
		})
	}
	return out
}
