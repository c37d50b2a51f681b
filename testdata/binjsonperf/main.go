package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/xdg-go/binjson"
	"go.mongodb.org/mongo-driver/bson"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: binjsonperf <json file>")
	}
	inputFile := os.Args[1]
	jsonData, err := os.ReadFile(inputFile)
	if err != nil {
		log.Fatal(err)
	}
	docs := benchDecode(jsonData)
	benchLoad(docs, len(jsonData))
	benchNaive(jsonData)
	benchBSON(jsonData)
}

// benchDecode streams every document through the binjson decoder and keeps
// the results for the read benchmark.
func benchDecode(input []byte) [][]byte {
	jsonReader := bufio.NewReader(bytes.NewReader(input))
	dec, err := binjson.NewDecoder(jsonReader)
	if err != nil {
		log.Fatal(err)
	}

	var docs [][]byte
	start := time.Now()
	for {
		doc, err := dec.Decode(nil)
		if err != nil {
			if err == io.EOF {
				break
			}
			log.Fatal(err)
		}
		docs = append(docs, doc)
	}
	elapsed := time.Since(start)
	reportResult("binjson decode", len(input), elapsed)
	return docs
}

// benchLoad validates each document and reads every value back out.
func benchLoad(docs [][]byte, size int) {
	start := time.Now()
	for _, raw := range docs {
		v, err := binjson.Load(raw)
		if err != nil {
			log.Fatal(err)
		}
		_ = v.ToJSON()
		v.Release()
	}
	elapsed := time.Since(start)
	reportResult("binjson load", size, elapsed)
}

func benchNaive(input []byte) {
	dec := json.NewDecoder(bytes.NewReader(input))

	start := time.Now()
	for dec.More() {
		var m map[string]any
		err := dec.Decode(&m)
		if err != nil {
			log.Fatal(err)
		}
		o, err := binjson.FromJSONObject(m)
		if err != nil {
			log.Fatal(err)
		}
		_ = o.TakeRawData()
	}
	elapsed := time.Since(start)
	reportResult("naive json->binjson", len(input), elapsed)
}

func benchBSON(input []byte) {
	dec := json.NewDecoder(bytes.NewReader(input))

	start := time.Now()
	for dec.More() {
		var m map[string]any
		err := dec.Decode(&m)
		if err != nil {
			log.Fatal(err)
		}
		buf, err := bson.Marshal(m)
		if err != nil {
			log.Fatal(err)
		}
		_ = buf
	}
	elapsed := time.Since(start)
	reportResult("naive json->bson", len(input), elapsed)
}

func reportResult(label string, size int, elapsed time.Duration) {
	throughput := float64(size) / float64(elapsed.Microseconds())
	fmt.Printf("%20s %.2f MB/s\n", label, throughput)
}
